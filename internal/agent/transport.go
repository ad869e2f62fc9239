package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/altowierigge/maestro/internal/core"
)

// RetryableStatus reports whether an HTTP status code is retryable:
// 408, 429, and all 5xx. Other 4xx codes are protocol errors.
func RetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}

// doJSON sends a JSON request through the circuit breaker and decodes a
// JSON response into out. Errors are classified into the domain
// taxonomy: network failures and retryable statuses become transport
// errors, other 4xx and malformed bodies become protocol errors.
func (b *base) doJSON(ctx context.Context, method, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return core.ErrProtocol(core.CodeParseFailed, "request payload not serializable").WithCause(err)
	}

	result, err := b.breaker.Execute(func() (any, error) {
		req, reqErr := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if reqErr != nil {
			return nil, core.ErrProtocol("BAD_REQUEST", "building request failed").WithCause(reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", b.userAgent())
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, doErr := b.client.Do(req)
		if doErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, core.ErrTransport("HTTP_TRANSPORT", "request failed").WithCause(doErr)
		}
		defer resp.Body.Close()

		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, core.ErrTransport("HTTP_READ", "reading response failed").WithCause(readErr)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, statusError(resp.StatusCode, data)
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return core.ErrTransport("CIRCUIT_OPEN", "circuit breaker open").WithCause(err)
		}
		return err
	}

	data := result.([]byte)
	if err := json.Unmarshal(data, out); err != nil {
		return core.ErrProtocol("MALFORMED_RESPONSE", "response body not valid JSON").WithCause(err)
	}
	return nil
}

// statusError maps a non-2xx status to a domain error.
func statusError(code int, body []byte) error {
	msg := fmt.Sprintf("HTTP %d: %s", code, truncate(string(body), 200))
	switch {
	case code == http.StatusTooManyRequests:
		return core.ErrRateLimit(msg)
	case RetryableStatus(code):
		return core.ErrTransport("SERVER_ERROR", msg)
	default:
		return core.ErrProtocol("CLIENT_ERROR", msg)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
