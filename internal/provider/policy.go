package provider

import (
	"strings"
	"time"

	"ai-invest/internal/types"
)

// Policy bounds the retries of a single completion call.
type Policy struct {
	MaxAttempts int
	MaxElapsed  time.Duration
	retry       map[types.ErrorKind]bool
	// permissive policies retry every kind except the fatal ones
	permissive bool
}

var fatalKinds = map[types.ErrorKind]bool{
	types.KindInvalidKey:    true,
	types.KindModelNotFound: true,
	types.KindBadRequest:    true,
}

var transient = []types.ErrorKind{
	types.KindRateLimit,
	types.KindTimeout,
	types.KindConnection,
	types.KindServer,
	types.KindEmpty,
}

func kindSet(kinds ...types.ErrorKind) map[types.ErrorKind]bool {
	m := make(map[types.ErrorKind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

// PolicyFor returns the retry policy of the named provider.
func PolicyFor(name string) Policy {
	switch strings.ToLower(name) {
	case "deepseek":
		return Policy{
			MaxAttempts: 5,
			MaxElapsed:  300 * time.Second,
			retry:       kindSet(append([]types.ErrorKind{types.KindAFC}, transient...)...),
		}
	case "openai", "anthropic":
		return Policy{
			MaxAttempts: 3,
			MaxElapsed:  120 * time.Second,
			retry:       kindSet(transient...),
		}
	default:
		return Policy{
			MaxAttempts: 3,
			MaxElapsed:  120 * time.Second,
			permissive:  true,
		}
	}
}

// WithMaxAttempts overrides the attempt count when n > 0.
func (p Policy) WithMaxAttempts(n int) Policy {
	if n > 0 {
		p.MaxAttempts = n
	}
	return p
}

// Retryable reports whether a failure of kind k should be retried.
func (p Policy) Retryable(k types.ErrorKind) bool {
	if p.permissive {
		return !fatalKinds[k]
	}
	return p.retry[k]
}

// WaitHint is the minimum pause before retrying after a failure of kind k.
func WaitHint(k types.ErrorKind) time.Duration {
	switch k {
	case types.KindAFC:
		return 5 * time.Second
	case types.KindRateLimit:
		return 10 * time.Second
	case types.KindTimeout, types.KindConnection:
		return 3 * time.Second
	}
	return 0
}
