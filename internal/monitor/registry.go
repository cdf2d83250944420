// internal/monitor/registry.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
)

var (
	ErrUnknownMonitor    = errors.New("monitor not found")
	ErrDuplicateRegister = errors.New("monitor factory already registered")
)

// Monitor is a long-running token detector addressable by name.
type Monitor interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Status() domain.MonitorStatus
	Tokens() []domain.TokenRecord
	Clear()
}

// Factory builds a monitor on first use.
type Factory func() (Monitor, error)

// Registry owns every monitor of the process. Handlers receive it
// explicitly instead of reaching for globals.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	monitors  map[string]Monitor
	logger    *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		monitors:  make(map[string]Monitor),
		logger:    logger.Named("monitor_registry"),
	}
}

// Register makes name creatable.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRegister, name)
	}
	r.factories[name] = factory
	r.logger.Debug("Monitor registered", zap.String("monitor", name))
	return nil
}

// Create returns the existing monitor or builds a new one.
func (r *Registry) Create(name string) (Monitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.monitors[name]; ok {
		return m, nil
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMonitor, name)
	}

	m, err := factory()
	if err != nil {
		return nil, fmt.Errorf("create monitor %s: %w", name, err)
	}
	r.monitors[name] = m
	r.logger.Info("📊 Monitor created", zap.String("monitor", name))
	return m, nil
}

// Get returns an already created monitor.
func (r *Registry) Get(name string) (Monitor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.monitors[name]
	return m, ok
}

// Known reports whether a factory exists for name.
func (r *Registry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Destroy stops the monitor and forgets it; the factory stays registered.
func (r *Registry) Destroy(name string) error {
	r.mu.Lock()
	m, ok := r.monitors[name]
	delete(r.monitors, name)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMonitor, name)
	}
	r.logger.Info("🛑 Destroying monitor", zap.String("monitor", name))
	return m.Stop()
}

// Names lists registered monitor names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Active returns created monitors keyed by name.
func (r *Registry) Active() map[string]Monitor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Monitor, len(r.monitors))
	for k, v := range r.monitors {
		out[k] = v
	}
	return out
}

// FindToken searches every created monitor's detections.
func (r *Registry) FindToken(mint string) (domain.TokenRecord, bool) {
	for _, m := range r.Active() {
		for _, t := range m.Tokens() {
			if t.Mint == mint {
				return t, true
			}
		}
	}
	return domain.TokenRecord{}, false
}

// Shutdown stops all monitors. It returns ctx.Err() if ctx expires first.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	active := r.monitors
	r.monitors = make(map[string]Monitor)
	r.mu.Unlock()

	r.logger.Info("Shutting down monitors", zap.Int("active", len(active)))

	done := make(chan error, 1)
	go func() {
		var errs []error
		for name, m := range active {
			if err := m.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop %s: %w", name, err))
			}
		}
		done <- errors.Join(errs...)
	}()

	select {
	case err := <-done:
		if err == nil {
			r.logger.Info("Monitor shutdown completed")
		}
		return err
	case <-ctx.Done():
		r.logger.Warn("⚠️ Monitor shutdown timed out")
		return ctx.Err()
	}
}
