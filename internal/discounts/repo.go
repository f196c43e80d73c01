package discounts

import (
	"context"

	"github.com/neferdidi/boba-backend/internal/repo"
	"github.com/neferdidi/boba-backend/pkg/db/models"
	"github.com/neferdidi/boba-backend/pkg/enums"
	"gorm.io/gorm"
)

// Source yields the rule set tiers are resolved against.
type Source interface {
	ListActive(ctx context.Context) ([]models.DiscountRule, error)
}

// Repository reads discount rules from the store. Rules are read-only here.
type Repository interface {
	Source
	WithTx(tx *gorm.DB) Repository
}

type repository struct {
	repo.Base
}

// NewRepository builds a discount rule repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) ListActive(ctx context.Context) ([]models.DiscountRule, error) {
	var rules []models.DiscountRule
	err := r.DB(ctx).
		Where("status = ?", enums.RecordStatusActive).
		Order("min_amount ASC, id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}
