package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	EventID string `json:"event_id"`
	Model   string `json:"model"`
}

func TestWrapUnwrap_RoundTrips(t *testing.T) {
	in := payload{EventID: "evt-1", Model: "fast"}
	env, err := Wrap(in, time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotEmpty(t, env.Message.MessageID)
	assert.NotEmpty(t, env.Message.Data)

	var out payload
	require.NoError(t, env.Unwrap(&out))
	assert.Equal(t, in, out)
}

func TestUnwrap_InvalidBase64Errors(t *testing.T) {
	env := Envelope{Message: EnvelopeMessage{Data: "not-base64!!!"}}
	var out payload
	assert.Error(t, env.Unwrap(&out))
}
