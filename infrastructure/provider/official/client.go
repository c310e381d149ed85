package official

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/sirupsen/logrus"
)

const (
	textTimeout   = 15 * time.Second
	mediaTimeout  = 60 * time.Second
	lookupTimeout = 5 * time.Second
	maxAttempts   = 3
)

var (
	httpClient     = &http.Client{}
	retryBaseDelay = time.Second
)

// Options are the resolved credentials plus the Graph API location.
type Options struct {
	GraphBaseURL  string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	WabaID        string
	CountryCode   string

	// HTTPClient overrides the package client when set.
	HTTPClient *http.Client
}

// Client sends through the WhatsApp Cloud API for one phone number.
type Client struct {
	opts Options
}

func NewClient(opts Options) *Client {
	opts.GraphBaseURL = strings.TrimRight(opts.GraphBaseURL, "/")
	if opts.GraphBaseURL == "" {
		opts.GraphBaseURL = "https://graph.facebook.com"
	}
	if opts.APIVersion == "" {
		opts.APIVersion = "v21.0"
	}
	return &Client{opts: opts}
}

func (c *Client) endpoint(parts ...string) string {
	return c.opts.GraphBaseURL + "/" + c.opts.APIVersion + "/" + strings.Join(parts, "/")
}

type graphError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		FBTraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

func describeGraphError(status int, body []byte) string {
	var ge graphError
	if err := json.Unmarshal(body, &ge); err == nil && ge.Error.Message != "" {
		return fmt.Sprintf("graph api %d: %s (code %d, type %s)", status, ge.Error.Message, ge.Error.Code, ge.Error.Type)
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	return fmt.Sprintf("graph api %d: %s", status, snippet)
}

// do performs one Graph call with per-attempt timeout. 5xx, timeouts and
// connection resets are retried with a doubling delay; anything else is final.
func (c *Client) do(ctx context.Context, method, url string, body any, timeout time.Duration, dest any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = b
	}

	delay := retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, data, err := c.once(ctx, method, url, payload, timeout)
		switch {
		case err != nil && ctx.Err() != nil:
			return pkgError.ProviderSendError(fmt.Sprintf("request cancelled: %v", err))
		case err != nil && isTransient(err):
			lastErr = pkgError.TransientNetworkError(err.Error())
		case err != nil:
			return pkgError.ProviderSendError(err.Error())
		case status >= 500:
			lastErr = pkgError.TransientNetworkError(describeGraphError(status, data))
		case status >= 300:
			return pkgError.ProviderSendError(describeGraphError(status, data))
		default:
			if dest == nil {
				return nil
			}
			if err := json.Unmarshal(data, dest); err != nil {
				return pkgError.ProviderSendError(fmt.Sprintf("unreadable graph response: %v", err))
			}
			return nil
		}

		if attempt == maxAttempts {
			break
		}
		logrus.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Warnf("[OFFICIAL] Transient failure, retrying: %v", lastErr)

		select {
		case <-ctx.Done():
			return pkgError.ProviderSendError(fmt.Sprintf("request cancelled: %v", ctx.Err()))
		case <-time.After(delay):
		}
		delay *= 2
	}

	return pkgError.ProviderSendError(fmt.Sprintf("giving up after %d attempts: %v", maxAttempts, lastErr))
}

func (c *Client) once(ctx context.Context, method, url string, payload []byte, timeout time.Duration) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, url, bodyReader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.AccessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "connection reset")
}

func (c *Client) client() *http.Client {
	if c.opts.HTTPClient != nil {
		return c.opts.HTTPClient
	}
	return httpClient
}
