package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 * 1024

// NewHTTPClient returns a client suited to long-lived streaming responses:
// connection setup is bounded, the body is not.
func NewHTTPClient(connectTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = 15 * time.Second
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: 2 * connectTimeout,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}

// IsLocalEndpoint reports whether rawURL points at a loopback host.
func IsLocalEndpoint(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// missingKeyMessage returns a user-facing message when cfg lacks a key it needs.
func missingKeyMessage(cfg Config, baseURL, label string) string {
	if cfg.APIKey != "" || IsLocalEndpoint(baseURL) {
		return ""
	}
	return fmt.Sprintf("%s API key is not configured. Please add it in Settings.", label)
}

func resolveBaseURL(override, fallback string) string {
	base := fallback
	if override != "" {
		base = override
	}
	return strings.TrimRight(base, "/")
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, body any, headers map[string]string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return client.Do(req)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// apiErrorBody is the `{"message": ...}` object every provider nests under "error".
type apiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Status  string `json:"status,omitempty"`
}

// httpErrorMessage extracts a readable message from a non-2xx response body.
func httpErrorMessage(status int, body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if msg := errorMessageFromJSON(data); msg != "" {
		return msg
	}
	return fmt.Sprintf("HTTP error %d", status)
}

// errorMessageFromJSON understands `{"error":{"message"}}`, `{"error":"..."}`,
// `[{"error":{...}}]` and `{"message":"..."}`.
func errorMessageFromJSON(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}

	if data[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil || len(list) == 0 {
			return ""
		}
		return errorMessageFromJSON(list[0])
	}

	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}

	if msg := errorText(envelope.Error); msg != "" {
		return msg
	}
	return envelope.Message
}

// errorText reads an `error` member in either the `{"message":...}` or the
// plain string form.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var nested apiErrorBody
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Message != "" {
		return nested.Message
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	return ""
}

// frameError reports whether a stream frame carried a non-null `error`
// member and returns its message, or fallback when it has none.
func frameError(raw json.RawMessage, fallback string) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if msg := errorText(raw); msg != "" {
		return msg, true
	}
	return fallback, true
}

// transportErrorMessage turns a fetch/read failure into the text shown to the user.
func transportErrorMessage(err error) string {
	if err == nil {
		return "Network error. Please check your connection."
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Network error. Please check your connection."
}
