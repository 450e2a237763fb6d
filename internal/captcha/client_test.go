// File: internal/captcha/client_test.go
package captcha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sigitm-exporter/internal/config"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(config.CaptchaConfig{
		APIKey:       "test-key",
		BaseURL:      baseURL,
		PollInterval: 10 * time.Millisecond,
		Timeout:      2 * time.Second,
	}, zap.NewNop())
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, request string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"request": request,
	}))
}

func TestClientSolveHappyPath(t *testing.T) {
	image := []byte("png-bytes")
	var polls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/in.php":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "test-key", r.PostFormValue("key"))
			assert.Equal(t, "base64", r.PostFormValue("method"))
			assert.Equal(t, base64.StdEncoding.EncodeToString(image), r.PostFormValue("body"))
			writeJSON(t, w, 1, "task-42")
		case "/res.php":
			assert.Equal(t, "task-42", r.URL.Query().Get("id"))
			if polls.Add(1) < 3 {
				writeJSON(t, w, 0, "CAPCHA_NOT_READY")
				return
			}
			writeJSON(t, w, 1, "h4x0r")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	token, err := c.Solve(context.Background(), image)

	require.NoError(t, err)
	assert.Equal(t, "h4x0r", token)
	assert.GreaterOrEqual(t, polls.Load(), int32(3), "not-ready responses must be polled through")
}

func TestClientSolveRejectedSubmission(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, 0, "ERROR_ZERO_BALANCE")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Solve(context.Background(), []byte("img"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERROR_ZERO_BALANCE")
}

func TestClientSolveServiceErrorDuringPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/in.php" {
			writeJSON(t, w, 1, "task-1")
			return
		}
		writeJSON(t, w, 0, "ERROR_CAPTCHA_UNSOLVABLE")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Solve(context.Background(), []byte("img"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERROR_CAPTCHA_UNSOLVABLE")
}

func TestClientSolveTimesOutWithoutSolution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/in.php" {
			writeJSON(t, w, 1, "task-1")
			return
		}
		writeJSON(t, w, 0, "CAPCHA_NOT_READY")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.timeout = 60 * time.Millisecond

	_, err := c.Solve(context.Background(), []byte("img"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSolution)
}

func TestClientSolveUnexpectedHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Solve(context.Background(), []byte("img"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
