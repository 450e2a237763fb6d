// File: internal/captcha/client.go
// Description: HTTP client for the 2captcha normal-captcha API. The solver is
// the only component allowed to block on an external service; the session
// calls it strictly sequentially, never alongside a readiness wait.
package captcha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"sigitm-exporter/internal/config"
)

// ErrNoSolution is returned when the service accepted the challenge but never
// produced a token within the configured budget.
var ErrNoSolution = errors.New("captcha: no solution returned")

// Solver converts a captcha challenge image into its text token.
type Solver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

// Client talks to the 2captcha HTTP API (in.php / res.php pair).
type Client struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	timeout      time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
}

// apiResponse is the JSON envelope both endpoints return when json=1 is set.
type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// NewClient builds a solver from configuration.
func NewClient(cfg config.CaptchaConfig, logger *zap.Logger) *Client {
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger.Named("captcha"),
	}
}

// Solve submits the image and polls until the service returns a token, the
// service reports an error, or the budget runs out.
func (c *Client) Solve(ctx context.Context, image []byte) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	id, err := c.submit(ctx, image)
	if err != nil {
		return "", err
	}
	c.logger.Debug("Challenge accepted by solver service", zap.String("task_id", id))

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrNoSolution, ctx.Err())
		case <-ticker.C:
		}

		token, ready, err := c.poll(ctx, id)
		if err != nil {
			return "", err
		}
		if ready {
			c.logger.Info("Captcha solved", zap.String("task_id", id))
			return token, nil
		}
	}
}

// submit uploads the challenge image and returns the service-side task id.
func (c *Client) submit(ctx context.Context, image []byte) (string, error) {
	form := url.Values{}
	form.Set("key", c.apiKey)
	form.Set("method", "base64")
	form.Set("body", base64.StdEncoding.EncodeToString(image))
	form.Set("json", "1")

	resp, err := c.postForm(ctx, c.baseURL+"/in.php", form)
	if err != nil {
		return "", fmt.Errorf("captcha: submit failed: %w", err)
	}
	if resp.Status != 1 {
		return "", fmt.Errorf("captcha: service rejected challenge: %s", resp.Request)
	}
	return resp.Request, nil
}

// poll asks for the result of a previously submitted task. The second return
// value reports whether the token is ready.
func (c *Client) poll(ctx context.Context, id string) (string, bool, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("action", "get")
	q.Set("id", id)
	q.Set("json", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/res.php?"+q.Encode(), nil)
	if err != nil {
		return "", false, fmt.Errorf("captcha: building poll request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return "", false, fmt.Errorf("captcha: poll failed: %w", err)
	}
	if resp.Status == 1 {
		return resp.Request, true, nil
	}
	if resp.Request == "CAPCHA_NOT_READY" {
		return "", false, nil
	}
	return "", false, fmt.Errorf("captcha: service error: %s", resp.Request)
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*apiResponse, error) {
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(body)))
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}
