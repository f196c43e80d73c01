package pricing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToppingRefDecodesAllShapes(t *testing.T) {
	var refs []ToppingRef
	payload := `[1, "1", " Pearls ", {"name":"Cheese foam","price":"1.5"}, {"id":7}, {"name":"Jelly"}]`
	require.NoError(t, json.Unmarshal([]byte(payload), &refs))
	require.Len(t, refs, 6)

	assert.Equal(t, ByID(1), refs[0])
	assert.Equal(t, ByID(1), refs[1])
	assert.Equal(t, ByName("Pearls"), refs[2])
	assert.Equal(t, Inline("Cheese foam", 1.5), refs[3])
	assert.Equal(t, ByID(7), refs[4])
	assert.Equal(t, ByName("Jelly"), refs[5])

	k0, ok := refs[0].Key()
	require.True(t, ok)
	k1, _ := refs[1].Key()
	assert.Equal(t, k0, k1, "numeric id and numeric string share a key")

	_, ok = refs[3].Key()
	assert.False(t, ok, "inline refs need no lookup")
}

func TestToppingRefRejectsGarbage(t *testing.T) {
	for _, payload := range []string{`[1.5]`, `[""]`, `[{}]`, `[true]`, `[{"name":"x","price":"abc"}]`} {
		var refs []ToppingRef
		assert.Error(t, json.Unmarshal([]byte(payload), &refs), payload)
	}
}

func TestToppingRefMarshalsCompactForm(t *testing.T) {
	out, err := json.Marshal([]ToppingRef{ByID(3), ByName("Pearls"), Inline("Foam", 2)})
	require.NoError(t, err)
	assert.JSONEq(t, `[3,"Pearls",{"name":"Foam","price":2}]`, string(out))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "42", ByID(42).Label())
	assert.Equal(t, "Pudding", ByName("Pudding").Label())
}
