package streaming

import (
	"encoding/json"
	"testing"

	"github.com/OCAP2/locationmarker/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(TypeHeading, core.HeadingFix{TrueHeading: 42})
	require.NoError(t, err)

	env, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeHeading, env.Type)

	var h core.HeadingFix
	require.NoError(t, json.Unmarshal(env.Payload, &h))
	assert.Equal(t, 42.0, h.TrueHeading)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("nope"))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"payload":{}}`))
	assert.ErrorContains(t, err, "missing type")
}
