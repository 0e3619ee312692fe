package api

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSessionIDSources(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/submit?sessionId=from-query", nil)
	assert.Equal(t, "from-query", getSessionID(req))

	req = httptest.NewRequest("POST", "/v1/submit", nil)
	req.Header.Set("X-Session-ID", "from-header")
	assert.Equal(t, "from-header", getSessionID(req))

	req = httptest.NewRequest("POST", "/v1/submit",
		bytes.NewReader([]byte(`{"sessionId":"from-body","target":"Next"}`)))
	assert.Equal(t, "from-body", getSessionID(req))
}

func TestGetSessionIDRestoresBody(t *testing.T) {
	payload := `{"sessionId":"s1","fields":[{"key":"fullName","value":"Priya"}]}`
	req := httptest.NewRequest("POST", "/v1/fill-form", strings.NewReader(payload))

	require.Equal(t, "s1", getSessionID(req))

	// The handler's decoder must see the whole body afterwards.
	data, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(data))
}

func TestGetSessionIDToleratesGarbage(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/submit", strings.NewReader("{not json"))
	assert.Empty(t, getSessionID(req))

	// The garbage still reaches the handler so validation can reject it.
	data, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}
