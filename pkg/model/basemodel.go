package model

import "time"

// BaseModel is an alternative to gorm.Model with a UUID primary key. Ledger
// rows are never deleted so there is no DeletedAt column.
type BaseModel struct {
	ID        string    `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
