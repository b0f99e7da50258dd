package yaml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name  string   `json:"name" yaml:"name" toml:"name" validate:"required"`
	Count int      `json:"count" yaml:"count" toml:"count"`
	Tags  []string `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`
}

func TestEncoder(t *testing.T) {
	enc := NewEncoder()

	bs, err := enc.Marshal(&item{Name: "a<b>", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, "name: a<b>\ncount: 2\n", string(bs))

	var ret item
	require.NoError(t, enc.Unmarshal(bs, &ret))
	assert.Equal(t, item{Name: "a<b>", Count: 2}, ret)

	assert.NoError(t, enc.Validate(&ret))
	assert.Error(t, enc.Validate(&item{}))
}
