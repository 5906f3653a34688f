package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskReference(t *testing.T) {
	assert.Equal(t, "", MaskReference("  "))
	assert.Equal(t, "****", MaskReference("1234"))
	assert.Equal(t, "****6789", MaskReference("UTR0123456789"))
	assert.Equal(t, "****0042", MaskReference("chq 000-000-0042"))
	assert.Equal(t, "****3210", MaskReference("+91 98765 43210"))
}

func TestMaskFields(t *testing.T) {
	ref := "UTR0123456789"
	sensitive := map[string]struct{}{"transaction_reference": {}, "cheque_number": {}}
	got := MaskFields(map[string]any{
		"flat_number":           "A-101",
		"Transaction_Reference": &ref,
		"changes": map[string]any{
			"cheque_number": "000123456",
		},
	}, sensitive)

	assert.Equal(t, "A-101", got["flat_number"])
	assert.Equal(t, "****6789", got["Transaction_Reference"])
	assert.Equal(t, map[string]any{"cheque_number": "****3456"}, got["changes"])
	assert.Nil(t, MaskFields(nil, sensitive))
}

func TestMaskFieldsHidesNonStringValues(t *testing.T) {
	got := MaskFields(map[string]any{"cheque_number": 123456789}, map[string]struct{}{"cheque_number": {}})
	assert.Equal(t, "****", got["cheque_number"])
}
