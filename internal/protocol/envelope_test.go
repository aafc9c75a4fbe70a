package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValid(t *testing.T) {
	e, err := Decode([]byte(`{"event":"pusher:subscribe","data":{"channel":"public-lobby"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventSubscribe, e.Event)
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	huge := `{"event":"x","data":"` + strings.Repeat("a", MaxFrameBytes) + `"}`
	_, err := Decode([]byte(huge))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsMissingEvent(t *testing.T) {
	_, err := Decode([]byte(`{"channel":"public-lobby"}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsOversizedChannel(t *testing.T) {
	long := strings.Repeat("a", MaxChannelLength+1)
	_, err := Decode([]byte(`{"event":"pusher:subscribe","channel":"` + long + `"}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	orig := NewError(ErrCodeRateLimited, "too many messages")
	raw, err := orig.Encode()
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, EventError, decoded.Event)
}

func TestNewConnectionEstablishedCarriesSocketID(t *testing.T) {
	e := NewConnectionEstablished("123.456", 120)
	assert.Equal(t, EventConnectionEstablished, e.Event)
	assert.Contains(t, string(e.Data), "123.456")
}
