package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/formpilot/formpilot/internal/ratelimit"
	"github.com/formpilot/formpilot/pkg/models"
)

// RateLimitMiddleware creates a middleware that enforces per-session
// rate limits. Requests that do not identify a session pass through;
// validation rejects them later anyway.
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := getSessionID(r)
			if sessionID == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(sessionID) {
				w.Header().Set("X-RateLimit-Remaining", "0")
				writeJSON(w, http.StatusTooManyRequests, models.ErrorResponse{
					Success: false,
					Error:   "rate limit exceeded for session " + sessionID,
				})
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens(sessionID))))
			next.ServeHTTP(w, r)
		})
	}
}

// getSessionID extracts the session id from the query string, the
// X-Session-ID header, or the JSON body. Request bodies carry the id as
// "sessionId", so the body is peeked and restored for the handler's
// decoder; a body too large or malformed yields no id and the handler's
// own validation rejects it.
func getSessionID(r *http.Request) string {
	if id := r.URL.Query().Get("sessionId"); id != "" {
		return id
	}
	if id := r.Header.Get("X-Session-ID"); id != "" {
		return id
	}
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBody))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(data), r.Body), r.Body}
	if err != nil || int64(len(data)) == maxPeekBody {
		return ""
	}

	var peek struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return ""
	}
	return peek.SessionID
}

// maxPeekBody bounds how much of a request body the middleware buffers.
// Real request bodies are a few KB at most; anything larger is not a
// body this API documents.
const maxPeekBody int64 = 1 << 20
