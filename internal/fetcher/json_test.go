package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONObject(t *testing.T) {
	type quote struct {
		Note  string `json:"Note"`
		Error string `json:"Error Message"`
	}
	obj, err := DecodeJSONObject[quote](strings.NewReader(`{"Note":"slow down"}`))
	require.NoError(t, err)
	assert.Equal(t, "slow down", obj.Note)
	assert.Empty(t, obj.Error)
}

func TestDecodeJSONObject_Invalid(t *testing.T) {
	_, err := DecodeJSONObject[map[string]any](strings.NewReader(`{not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json: decode object")
}
