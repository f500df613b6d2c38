package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrGeneric          = errors.New("database error")
	ErrDuplicate        = errors.New("duplicate record")
	ErrNotFound         = errors.New("record not found")
	ErrRelationNotExist = errors.New("referenced record does not exist")
)

// Postgres integrity constraint violations (class 23).
const (
	UniqueViolation     = "23505"
	ForeignKeyViolation = "23503"
)

// Repository is a read-side gorm repository for one model.
type Repository[T any] interface {
	Find(ctx context.Context, options FindOptions) ([]*T, error)
	FindOne(ctx context.Context, options FindOptions) (*T, error)
	Ping(ctx context.Context) error
}

type repository[T any] struct {
	db *gorm.DB
}

func NewRepository[T any](db *gorm.DB) Repository[T] {
	return &repository[T]{db: db}
}

// MapError translates driver errors into the package sentinels. Unknown
// errors become ErrGeneric wrapping the original.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case UniqueViolation:
			return ErrDuplicate
		case ForeignKeyViolation:
			return ErrRelationNotExist
		}
	}
	return fmt.Errorf("%w: %v", ErrGeneric, err)
}

func (r *repository[T]) query(ctx context.Context, options FindOptions) *gorm.DB {
	return options.apply(r.db.WithContext(ctx).Model(new(T)))
}

func (r *repository[T]) Find(ctx context.Context, options FindOptions) ([]*T, error) {
	var results []*T
	if err := r.query(ctx, options).Find(&results).Error; err != nil {
		return nil, MapError(err)
	}
	return results, nil
}

func (r *repository[T]) FindOne(ctx context.Context, options FindOptions) (*T, error) {
	var result T
	if err := r.query(ctx, options).Take(&result).Error; err != nil {
		return nil, MapError(err)
	}
	return &result, nil
}

func (r *repository[T]) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
