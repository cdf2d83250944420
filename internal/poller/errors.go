// internal/poller/errors.go
package poller

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning возвращается при повторном Start
	ErrAlreadyRunning = errors.New("poller already running")

	// ErrTickInProgress возвращается, если предыдущий цикл ещё не завершён
	ErrTickInProgress = errors.New("previous poll cycle still running")

	// ErrNoMint возникает, когда в транзакции не найден mint
	ErrNoMint = errors.New("no mint found in transaction")
)

// ConnectionError describes a failed connectivity check during Start.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("chain connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ParseError describes a transaction that could not be fetched or interpreted.
type ParseError struct {
	Signature string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse transaction %s: %v", e.Signature, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
