// internal/sources/adapter.go
package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
)

var (
	// ErrUpstreamStatus возникает при non-2xx ответе источника
	ErrUpstreamStatus = errors.New("upstream returned non-2xx status")

	// ErrDecode возникает, когда ответ не удалось разобрать
	ErrDecode = errors.New("unparsable upstream payload")

	// ErrTransport возникает при сетевой ошибке
	ErrTransport = errors.New("transport failure")
)

// Query narrows what an adapter asks its upstream for.
type Query struct {
	Limit  int
	Offset int
	Search string
}

// Adapter fetches recent tokens from one upstream and normalizes them.
// Lower Priority values are consulted first.
type Adapter interface {
	Name() string
	Priority() int
	Fetch(ctx context.Context, q Query) ([]domain.TokenRecord, error)
}

// FetchError описывает отказ конкретного источника
type FetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("source %s: status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth another attempt.
func (e *FetchError) Retryable() bool {
	if errors.Is(e.Err, ErrTransport) {
		return true
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}
