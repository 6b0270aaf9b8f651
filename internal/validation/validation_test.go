package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string  `validate:"required"`
	Lat   float64 `validate:"gte=-90,lte=90"`
	Level string  `validate:"omitempty,oneof=debug info"`
}

func TestStruct_FormatsFieldErrors(t *testing.T) {
	t.Parallel()

	err := Struct(sample{Lat: 91, Level: "loud"})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "name is required")
	assert.Contains(t, msg, "lat must be at most 90")
	assert.Contains(t, msg, "level must be one of: debug info")
}

func TestStruct_OK(t *testing.T) {
	t.Parallel()

	require.NoError(t, Struct(sample{Name: "x", Lat: 10}))
}
