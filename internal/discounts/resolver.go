package discounts

import (
	"github.com/neferdidi/boba-backend/pkg/db/models"
	"github.com/neferdidi/boba-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Match is the tier selected for an amount. Rate is a percentage.
type Match struct {
	Rule models.DiscountRule `json:"rule"`
	Rate float64             `json:"rate"`
}

// NextTier previews the closest tier above the current amount.
type NextTier struct {
	Rule            models.DiscountRule `json:"rule"`
	Rate            float64             `json:"rate"`
	ThresholdAmount float64             `json:"threshold_amount"`
	Remaining       float64             `json:"remaining"`
}

// Resolve picks the active rule with the greatest min_amount whose band contains
// amount. Equal minimums go to the higher rate, then the lower id. Nil means no
// discount applies.
func Resolve(rules []models.DiscountRule, amount float64) *Match {
	var best *models.DiscountRule
	for i := range rules {
		rule := &rules[i]
		if !rule.Applies(amount) {
			continue
		}
		if best == nil || outranks(rule, best, true) {
			best = rule
		}
	}
	if best == nil {
		return nil
	}
	return &Match{Rule: *best, Rate: best.DiscountRate}
}

// ResolveNext returns the active rule with the smallest min_amount above amount.
func ResolveNext(rules []models.DiscountRule, amount float64) *NextTier {
	var next *models.DiscountRule
	for i := range rules {
		rule := &rules[i]
		if rule.Status != enums.RecordStatusActive || rule.MinAmount <= amount {
			continue
		}
		if next == nil || outranks(rule, next, false) {
			next = rule
		}
	}
	if next == nil {
		return nil
	}

	remaining := decimal.NewFromFloat(next.MinAmount).Sub(decimal.NewFromFloat(amount)).Round(2)
	return &NextTier{
		Rule:            *next,
		Rate:            next.DiscountRate,
		ThresholdAmount: next.MinAmount,
		Remaining:       remaining.InexactFloat64(),
	}
}

// RateFor is Resolve collapsed to a percentage, 0 when nothing matches.
func RateFor(rules []models.DiscountRule, amount float64) float64 {
	if match := Resolve(rules, amount); match != nil {
		return match.Rate
	}
	return 0
}

func outranks(candidate, current *models.DiscountRule, preferHigherMin bool) bool {
	if candidate.MinAmount != current.MinAmount {
		if preferHigherMin {
			return candidate.MinAmount > current.MinAmount
		}
		return candidate.MinAmount < current.MinAmount
	}
	if candidate.DiscountRate != current.DiscountRate {
		return candidate.DiscountRate > current.DiscountRate
	}
	return candidate.ID < current.ID
}
