package ui

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// ErrTooManyRestarts is returned once the UI crashed more than maxRestarts times.
var ErrTooManyRestarts = errors.New("UI crashed too many times")

// RecoveryHandler runs a bubbletea program and restarts it after a panic.
type RecoveryHandler struct {
	logger       *zap.Logger
	restartDelay time.Duration
	maxRestarts  int
	newModel     func() tea.Model
	options      []tea.ProgramOption

	mu           sync.Mutex
	restartCount int
	program      *tea.Program
}

func NewRecoveryHandler(logger *zap.Logger, newModel func() tea.Model, opts ...tea.ProgramOption) *RecoveryHandler {
	return &RecoveryHandler{
		logger:       logger.Named("tui_recovery"),
		restartDelay: 2 * time.Second,
		maxRestarts:  5,
		newModel:     newModel,
		options:      opts,
	}
}

// Run blocks until the program exits normally, ctx is cancelled or the
// restart budget is spent.
func (rh *RecoveryHandler) Run(ctx context.Context) error {
	for {
		err := rh.runOnce(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}

		rh.mu.Lock()
		rh.restartCount++
		count := rh.restartCount
		rh.mu.Unlock()

		if count > rh.maxRestarts {
			return fmt.Errorf("%w (%d): %w", ErrTooManyRestarts, rh.maxRestarts, err)
		}

		rh.logger.Error("UI crashed, will restart",
			zap.Error(err),
			zap.Int("restart_count", count),
			zap.Duration("delay", rh.restartDelay))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(rh.restartDelay):
		}
	}
}

func (rh *RecoveryHandler) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("UI panic: %v", r)
			rh.logger.Error("UI panic recovered",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
		}
	}()

	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, rh.options...)
	program := tea.NewProgram(NewSafeModel(rh.newModel(), rh.logger), opts...)

	rh.mu.Lock()
	rh.program = program
	rh.mu.Unlock()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("UI error: %w", err)
	}
	return nil
}

// Stop asks the running program to quit.
func (rh *RecoveryHandler) Stop() {
	rh.mu.Lock()
	defer rh.mu.Unlock()

	if rh.program != nil {
		rh.program.Quit()
		rh.program = nil
	}
}

func (rh *RecoveryHandler) RestartCount() int {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	return rh.restartCount
}

// SafeModel wraps a model so a panic in Update or View does not take the
// terminal down with it.
type SafeModel struct {
	model  tea.Model
	logger *zap.Logger
}

func NewSafeModel(model tea.Model, logger *zap.Logger) *SafeModel {
	return &SafeModel{model: model, logger: logger}
}

func (sm *SafeModel) Init() (cmd tea.Cmd) {
	defer sm.recoverFromPanic("Init", &cmd)
	return sm.model.Init()
}

func (sm *SafeModel) Update(msg tea.Msg) (model tea.Model, cmd tea.Cmd) {
	defer sm.recoverFromPanic("Update", &cmd)
	model = sm
	var next tea.Model
	next, cmd = sm.model.Update(msg)
	sm.model = next
	return sm, cmd
}

func (sm *SafeModel) View() (view string) {
	defer func() {
		if r := recover(); r != nil {
			sm.logger.Error("View panic recovered",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			view = "UI Error: view crashed. Press q to exit."
		}
	}()
	return sm.model.View()
}

func (sm *SafeModel) recoverFromPanic(method string, cmd *tea.Cmd) {
	if r := recover(); r != nil {
		sm.logger.Error("UI method panic recovered",
			zap.String("method", method),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())))
		*cmd = nil
	}
}
