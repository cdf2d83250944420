// internal/sources/http.go
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxElapsed = 8 * time.Second
	defaultInitial    = 300 * time.Millisecond
	defaultUserAgent  = "pumpwatch/1.0"
	defaultSOLPrice   = 150.0

	lamportsPerSOL = 1e9
)

// Options are shared by every HTTP adapter. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	Client     *http.Client
	Logger     *zap.Logger
	Rand       *rand.Rand
	UserAgent  string
	SOLPrice   float64
	MaxElapsed time.Duration
	// InitialInterval is the first retry delay.
	InitialInterval time.Duration
}

// httpSource holds the transport plumbing common to all HTTP adapters.
type httpSource struct {
	name      string
	priority  int
	baseURL   string
	client    *http.Client
	logger    *zap.Logger
	fill      *filler
	userAgent string
	solPrice  float64

	maxElapsed time.Duration
	initial    time.Duration
}

func newHTTPSource(name string, priority int, defaultBase string, opts Options) httpSource {
	s := httpSource{
		name:       name,
		priority:   priority,
		baseURL:    opts.BaseURL,
		client:     opts.Client,
		userAgent:  opts.UserAgent,
		solPrice:   opts.SOLPrice,
		maxElapsed: opts.MaxElapsed,
		initial:    opts.InitialInterval,
	}
	if s.baseURL == "" {
		s.baseURL = defaultBase
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: defaultTimeout}
	}
	if s.userAgent == "" {
		s.userAgent = defaultUserAgent
	}
	if s.solPrice <= 0 {
		s.solPrice = defaultSOLPrice
	}
	if s.maxElapsed <= 0 {
		s.maxElapsed = defaultMaxElapsed
	}
	if s.initial <= 0 {
		s.initial = defaultInitial
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s.logger = logger.Named(name)
	s.fill = newFiller(opts.Rand)
	return s
}

func (s *httpSource) Name() string { return s.name }

func (s *httpSource) Priority() int { return s.priority }

// getJSON выполняет GET с повторами для transport/429/5xx и декодирует тело в out
func (s *httpSource) getJSON(ctx context.Context, url string, out interface{}) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.initial
	policy.MaxInterval = s.initial * 10

	notify := func(err error, next time.Duration) {
		s.logger.Debug("Retrying upstream request", zap.String("url", url), zap.Error(err), zap.Duration("backoff", next))
	}

	operation := func() (struct{}, error) {
		return struct{}{}, s.doRequest(ctx, url, out)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(s.maxElapsed),
		backoff.WithNotify(notify))
	if err == nil {
		return nil
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Source: s.name, Err: fmt.Errorf("%w: %w", ErrTransport, err)}
}

func (s *httpSource) doRequest(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(&FetchError{Source: s.name, Err: fmt.Errorf("%w: %v", ErrTransport, err)})
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return &FetchError{Source: s.name, Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		fe := &FetchError{Source: s.name, StatusCode: resp.StatusCode, Err: ErrUpstreamStatus}
		if fe.Retryable() {
			return fe
		}
		return backoff.Permanent(fe)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(&FetchError{Source: s.name, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrDecode, err)})
	}
	return nil
}

// filler draws bounded placeholder values for fields an upstream left out.
type filler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newFiller(rng *rand.Rand) *filler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &filler{rng: rng}
}

func (f *filler) between(min, max float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return min + f.rng.Float64()*(max-min)
}

func (f *filler) intBetween(min, max int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return min + f.rng.Intn(max-min+1)
}

func (f *filler) marketCap() float64 { return f.between(1000, 100000) }

func (f *filler) liquidity() float64 { return f.between(500, 20000) }

func (f *filler) replies() int { return f.intBetween(0, 50) }

func (f *filler) holders() int { return f.intBetween(10, 500) }

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
