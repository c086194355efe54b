package secrets

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecret_Redaction(t *testing.T) {
	s := Secret("hunter2")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "Secret([REDACTED])", s.GoString())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "hunter2")

	assert.Equal(t, "hunter2", s.Value())
	assert.True(t, s.IsSet())
}

func TestSecret_Empty(t *testing.T) {
	var s Secret

	assert.Equal(t, "", s.String())
	assert.False(t, s.IsSet())
}

func TestSecret_MarshalJSON(t *testing.T) {
	payload := struct {
		Token Secret `json:"token"`
	}{Token: Secret("hunter2")}

	out, err := json.Marshal(payload)
	require.NoError(t, err)

	assert.JSONEq(t, `{"token":"[REDACTED]"}`, string(out))
}

func TestSecret_UnmarshalRoundTrip(t *testing.T) {
	var s Secret
	require.NoError(t, s.UnmarshalText([]byte("from-env")))
	assert.Equal(t, "from-env", s.Value())

	var fromJSON struct {
		Token Secret `json:"token"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"token":"raw-value"}`), &fromJSON))
	assert.Equal(t, "raw-value", fromJSON.Token.Value())
}
