package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCycleStatus(t *testing.T) {
	got, err := ParseCycleStatus("ended")
	require.NoError(t, err)
	assert.Equal(t, CycleStatusEnded, got)
	assert.True(t, got.IsValid())

	_, err = ParseCycleStatus("closed")
	assert.Error(t, err)
	assert.False(t, CycleStatus("closed").IsValid())
}

func TestParseOrderStatus(t *testing.T) {
	for _, raw := range []string{"pending", "paid", "completed", "cancelled"} {
		got, err := ParseOrderStatus(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, got.String())
	}
	_, err := ParseOrderStatus("canceled")
	assert.Error(t, err)
}

func TestParseRecordStatus(t *testing.T) {
	got, err := ParseRecordStatus("inactive")
	require.NoError(t, err)
	assert.Equal(t, RecordStatusInactive, got)
	_, err = ParseRecordStatus("")
	assert.Error(t, err)
}
