package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayhub/pusherd/internal/auth"
	"github.com/relayhub/pusherd/internal/wsapi"
)

type fakeStatsSource struct {
	stats wsapi.Stats
}

func (f fakeStatsSource) Stats() wsapi.Stats { return f.stats }

func newTestServer() *Server {
	return New(Config{}, auth.New("top"), fakeStatsSource{stats: wsapi.Stats{
		Connections:      2,
		Channels:         1,
		PresenceChannels: 0,
	}}, nil, zerolog.Nop())
}

func TestHandleAuthReturnsSignedToken(t *testing.T) {
	s := newTestServer()

	body, _ := json.Marshal(authRequest{SocketID: "42.abc", ChannelName: "private-x"})
	req := httptest.NewRequest(http.MethodPost, "/auth", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.Engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp authResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, auth.New("top").Token("42.abc", "private-x"), resp.Auth)
}

func TestHandleAuthRejectsMissingFields(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/auth", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealthReportsStats(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.Engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	stats, ok := body["stats"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), stats["connections"])
	assert.Equal(t, float64(1), stats["channels"])
	assert.Equal(t, float64(0), stats["presenceChannels"])
}

func TestOptionsReturnsNoContent(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodOptions, "/anything", nil)
	w := httptest.NewRecorder()

	s.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}
