// internal/app/shutdown.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultShutdownTimeout = 15 * time.Second

// CloseFunc adapts a context-aware stop function to the shutdown list.
type CloseFunc func(ctx context.Context) error

// ShutdownHandler closes registered services in reverse registration order.
type ShutdownHandler struct {
	logger   *zap.Logger
	timeout  time.Duration
	mu       sync.Mutex
	services []namedService
	done     bool
}

type namedService struct {
	name  string
	close CloseFunc
}

func NewShutdownHandler(logger *zap.Logger, timeout time.Duration) *ShutdownHandler {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &ShutdownHandler{
		logger:  logger.Named("shutdown"),
		timeout: timeout,
	}
}

// Add registers a service. Services added later are closed first.
func (sh *ShutdownHandler) Add(name string, fn CloseFunc) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.services = append(sh.services, namedService{name: name, close: fn})
	sh.logger.Debug("Registered service for shutdown", zap.String("service", name))
}

// AddFunc registers a stop function that takes no context.
func (sh *ShutdownHandler) AddFunc(name string, fn func() error) {
	sh.Add(name, func(context.Context) error { return fn() })
}

// Shutdown closes every service once. Each service gets what is left of
// the shared timeout; a service that overruns it is abandoned and reported.
func (sh *ShutdownHandler) Shutdown(ctx context.Context) error {
	sh.mu.Lock()
	if sh.done {
		sh.mu.Unlock()
		return nil
	}
	sh.done = true
	services := make([]namedService, len(sh.services))
	copy(services, sh.services)
	sh.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, sh.timeout)
	defer cancel()

	sh.logger.Info("🛑 Starting graceful shutdown", zap.Int("services", len(services)))

	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		if err := sh.closeOne(ctx, services[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		sh.logger.Error("Shutdown completed with errors", zap.Int("errorCount", len(errs)))
		return errors.Join(errs...)
	}
	sh.logger.Info("✅ Graceful shutdown completed")
	return nil
}

func (sh *ShutdownHandler) closeOne(ctx context.Context, svc namedService) error {
	if ctx.Err() != nil {
		sh.logger.Error("Shutdown timeout before service", zap.String("service", svc.name))
		return fmt.Errorf("%s: shutdown timeout", svc.name)
	}

	sh.logger.Info("Shutting down service", zap.String("service", svc.name))
	done := make(chan error, 1)
	go func() {
		done <- svc.close(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			sh.logger.Error("Failed to shutdown service", zap.String("service", svc.name), zap.Error(err))
			return fmt.Errorf("%s: %w", svc.name, err)
		}
		sh.logger.Debug("Service shutdown complete", zap.String("service", svc.name))
		return nil
	case <-ctx.Done():
		sh.logger.Error("Shutdown timeout for service", zap.String("service", svc.name))
		return fmt.Errorf("%s: shutdown timeout", svc.name)
	}
}
