package resilience

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
)

// HTTPCaller is the production Caller: plain JSON-over-HTTP against the
// target's base URL. The per-attempt timeout comes from the wrapping
// client's context, so the embedded http.Client carries none of its own.
type HTTPCaller struct {
	BaseURL string
	Headers map[string]string
	HTTP    *http.Client
}

func NewHTTPCaller(policy Policy, headers map[string]string) *HTTPCaller {
	return &HTTPCaller{
		BaseURL: strings.TrimRight(policy.BaseURL, "/"),
		Headers: headers,
		HTTP:    &http.Client{},
	}
}

func (h *HTTPCaller) Call(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, h.BaseURL+req.Path, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range h.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := h.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}
