package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"ai-invest/internal/api"
	"ai-invest/internal/types"
)

// Error is the failure of a completion call after classification.
type Error struct {
	Kind       types.ErrorKind
	StatusCode int
	Provider   string
	Model      string
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s call to %s failed (%s", e.Provider, e.Model, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", HTTP %d", e.StatusCode)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(", %d attempts", e.Attempts)
	}
	return msg + "): " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classified kind of err, or KindUnknown.
func KindOf(err error) types.ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return types.KindUnknown
}

var hints = map[types.ErrorKind]string{
	types.KindInvalidKey:    "Check that API_KEY is correct, active and has remaining quota.",
	types.KindModelNotFound: "Check MODEL_NAME against the provider's model list and the account's access to it.",
	types.KindTimeout:       "Connection timed out: check network access to API_BASE_URL or raise API_TIMEOUT.",
	types.KindConnection:    "Could not reach the provider: check API_BASE_URL, proxy settings and network access.",
	types.KindRateLimit:     "Rate limit reached: lower API_REQUESTS_PER_SECOND or wait before retrying.",
	types.KindServer:        "The provider returned a server error; try again later.",
	types.KindBadRequest:    "The provider rejected the request; check the model name and request parameters.",
	types.KindAFC:           "The provider reported \"AFC is enabled\"; this is transient, retry later.",
	types.KindEmpty:         "The model returned an empty response; retry or pick another model.",
}

// Hint returns troubleshooting text for err, or "" when none applies.
func Hint(err error) string {
	if err == nil {
		return ""
	}
	return hints[KindOf(err)]
}

// classify maps a transport or status failure to its kind.
func classify(err error) (types.ErrorKind, int) {
	var se *api.StatusError
	if errors.As(err, &se) {
		return classifyStatus(se.StatusCode, string(se.Body)), se.StatusCode
	}
	var le *api.LimitError
	if errors.As(err, &le) {
		if errors.Is(err, context.Canceled) {
			return types.KindUnknown, 0
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return types.KindTimeout, 0
		}
		// the limiter refused a wait that would outlast the deadline
		return types.KindRateLimit, 0
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.KindTimeout, 0
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return types.KindTimeout, 0
	}
	if errors.Is(err, context.Canceled) {
		return types.KindUnknown, 0
	}
	var te *api.TransportError
	if errors.As(err, &te) {
		return types.KindConnection, 0
	}
	return types.KindUnknown, 0
}

func classifyStatus(code int, body string) types.ErrorKind {
	switch {
	case strings.Contains(body, "AFC is enabled"):
		return types.KindAFC
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return types.KindInvalidKey
	case code == http.StatusNotFound:
		return types.KindModelNotFound
	case code == http.StatusTooManyRequests || strings.Contains(body, "rate_limit"):
		return types.KindRateLimit
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return types.KindTimeout
	case code >= 500:
		return types.KindServer
	case code == http.StatusBadRequest:
		return types.KindBadRequest
	}
	return types.KindUnknown
}
