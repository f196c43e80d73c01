package settings

import (
	"context"
	"strconv"
	"strings"

	"github.com/neferdidi/boba-backend/internal/repo"
	"github.com/neferdidi/boba-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	KeyOrderingOpen     = "ordering_open"
	KeyMaxVisibleCycles = "max_visible_cycles"
)

// Repository reads and writes the key/value settings table.
type Repository struct {
	repo.Base
}

// NewRepository builds a settings repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the transaction handle.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

// Get returns the raw value and whether the key exists.
func (r *Repository) Get(ctx context.Context, key string) (string, bool, error) {
	row, err := repo.TakeOrNil[models.Setting](r.DB(ctx).Where("key = ?", key))
	if err != nil || row == nil {
		return "", false, err
	}
	return row.Value, true, nil
}

// Set upserts a value.
func (r *Repository) Set(ctx context.Context, key, value string) error {
	row := models.Setting{Key: key, Value: value}
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

// OrderingOpen reads the global ordering flag. A missing row means closed.
func (r *Repository) OrderingOpen(ctx context.Context) (bool, error) {
	value, ok, err := r.Get(ctx, KeyOrderingOpen)
	if err != nil || !ok {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(value), "true"), nil
}

func (r *Repository) SetOrderingOpen(ctx context.Context, open bool) error {
	return r.Set(ctx, KeyOrderingOpen, strconv.FormatBool(open))
}

// MaxVisibleCycles returns the stored positive integer or fallback.
func (r *Repository) MaxVisibleCycles(ctx context.Context, fallback int) (int, error) {
	value, ok, err := r.Get(ctx, KeyMaxVisibleCycles)
	if err != nil || !ok {
		return fallback, err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(value))
	if convErr != nil || n <= 0 {
		return fallback, nil
	}
	return n, nil
}
