package anthropic

import (
	"errors"
	"fmt"
)

// Error categories the pipeline must be able to tell apart (auth is fatal,
// rate limit retries after backoff, malformed falls back to heuristics).
var (
	ErrAuth        = errors.New("anthropic: authentication failed")
	ErrRateLimited = errors.New("anthropic: rate limited")
	ErrMalformed   = errors.New("anthropic: malformed response")
)

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("anthropic http %d: %s", e.StatusCode, e.Body)
}

func (e *httpError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (e *httpError) Unwrap() error {
	switch e.StatusCode {
	case 401, 403:
		return ErrAuth
	case 429:
		return ErrRateLimited
	default:
		return nil
	}
}
