package discounts

import (
	"context"
	"testing"

	"github.com/neferdidi/boba-backend/pkg/db/dbtest"
	"github.com/neferdidi/boba-backend/pkg/db/models"
	"github.com/neferdidi/boba-backend/pkg/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryListActiveOrdersByMinimum(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()

	inactive := rule(0, 50, nil, 5)
	inactive.Status = enums.RecordStatusInactive
	seed := []models.DiscountRule{rule(0, 200, nil, 15), inactive, rule(0, 100, ptr(199.99), 10)}
	require.NoError(t, client.DB().Create(&seed).Error)

	rules, err := NewRepository(client.DB()).ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, 100.0, rules[0].MinAmount)
	require.NotNil(t, rules[0].MaxAmount)
	assert.Equal(t, 199.99, *rules[0].MaxAmount)
	assert.Equal(t, 200.0, rules[1].MinAmount)
	assert.Nil(t, rules[1].MaxAmount)
}
