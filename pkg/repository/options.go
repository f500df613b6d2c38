package repository

import (
	"strings"

	"gorm.io/gorm"
)

type OrderType string

const (
	OrderTypeAsc  OrderType = "ASC"
	OrderTypeDesc OrderType = "DESC"
)

type OrderBy struct {
	Column string
	Dir    OrderType
}

func Asc(column string) OrderBy  { return OrderBy{Column: column, Dir: OrderTypeAsc} }
func Desc(column string) OrderBy { return OrderBy{Column: column, Dir: OrderTypeDesc} }

// FindOptions narrows a query. Where keys are column names matched for
// equality; Order is applied in slice order.
type FindOptions struct {
	Select []string
	Where  map[string]any
	Order  []OrderBy
	Limit  int
}

func (o FindOptions) apply(db *gorm.DB) *gorm.DB {
	if len(o.Select) > 0 {
		db = db.Select(strings.Join(o.Select, ", "))
	}
	if len(o.Where) > 0 {
		db = db.Where(o.Where)
	}
	for _, ob := range o.Order {
		dir := ob.Dir
		if dir == "" {
			dir = OrderTypeAsc
		}
		db = db.Order(ob.Column + " " + string(dir))
	}
	if o.Limit > 0 {
		db = db.Limit(o.Limit)
	}
	return db
}
