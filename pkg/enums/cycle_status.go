package enums

import "fmt"

// CycleStatus tracks an ordering cycle through active → ended → confirmed.
type CycleStatus string

const (
	CycleStatusActive    CycleStatus = "active"
	CycleStatusEnded     CycleStatus = "ended"
	CycleStatusConfirmed CycleStatus = "confirmed"
)

var validCycleStatuses = []CycleStatus{
	CycleStatusActive,
	CycleStatusEnded,
	CycleStatusConfirmed,
}

// String implements fmt.Stringer.
func (c CycleStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CycleStatus.
func (c CycleStatus) IsValid() bool {
	for _, candidate := range validCycleStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCycleStatus converts raw input into a CycleStatus.
func ParseCycleStatus(value string) (CycleStatus, error) {
	for _, candidate := range validCycleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cycle status %q", value)
}
