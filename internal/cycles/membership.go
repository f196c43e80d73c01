package cycles

import (
	"time"

	"github.com/neferdidi/boba-backend/pkg/db/models"
)

// Contains reports whether t falls in [start_time, end_time). An open cycle
// contains every instant from its start onward.
func Contains(c models.OrderingCycle, t time.Time) bool {
	if t.Before(c.StartTime) {
		return false
	}
	return c.EndTime == nil || t.Before(*c.EndTime)
}

// Classify returns the cycle containing t, preferring the latest start when
// intervals overlap. Nil when no cycle contains t.
func Classify(cycles []models.OrderingCycle, t time.Time) *models.OrderingCycle {
	var found *models.OrderingCycle
	for i := range cycles {
		c := &cycles[i]
		if !Contains(*c, t) {
			continue
		}
		if found == nil || c.StartTime.After(found.StartTime) ||
			(c.StartTime.Equal(found.StartTime) && c.ID > found.ID) {
			found = c
		}
	}
	if found == nil {
		return nil
	}
	cp := *found
	return &cp
}

// ClassifyBatch classifies many timestamps against one cycle set. Keys are the
// UTC-normalized inputs; unmatched timestamps are absent.
func ClassifyBatch(cycles []models.OrderingCycle, times []time.Time) map[time.Time]models.OrderingCycle {
	out := make(map[time.Time]models.OrderingCycle, len(times))
	for _, t := range times {
		key := t.UTC()
		if _, done := out[key]; done {
			continue
		}
		if c := Classify(cycles, key); c != nil {
			out[key] = *c
		}
	}
	return out
}

// IsActiveCycle is true when both cycles are absent or both name the same id.
func IsActiveCycle(orderCycle, activeCycle *models.OrderingCycle) bool {
	if orderCycle == nil || activeCycle == nil {
		return orderCycle == nil && activeCycle == nil
	}
	return orderCycle.ID == activeCycle.ID
}

// IsOrderExpired flags orders that belong to an already processed cycle. It is
// display-only.
//
// With an active cycle, orders created before its start are expired. Without
// one, orders outside the latest ended cycle are expired, including orders with
// no cycle. With neither, nothing is expired.
func IsOrderExpired(order models.Order, activeCycle, latestEndedCycle *models.OrderingCycle) bool {
	if activeCycle != nil {
		return order.CreatedAt.Before(activeCycle.StartTime)
	}
	if latestEndedCycle != nil {
		return order.CycleID == nil || *order.CycleID != latestEndedCycle.ID
	}
	return false
}
