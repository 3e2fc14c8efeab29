package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCancelled is returned by Run when its context is cancelled. The
// closure state is kept, so a later Run resumes where this one stopped.
var ErrCancelled = errors.New("closure cancelled")

// ConfigError reports an invalid Closer configuration. It is returned by
// New before any work is done.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeDissimilar indicates the homomorphism target has a different similarity type.
	ErrCodeDissimilar ConfigErrorCode = "DISSIMILAR_ALGEBRAS"

	// ErrCodeGeneratorCount indicates the image list does not match the generators.
	ErrCodeGeneratorCount ConfigErrorCode = "GENERATOR_COUNT"

	// ErrCodeBadGenerator indicates a generator outside the algebra.
	ErrCodeBadGenerator ConfigErrorCode = "BAD_GENERATOR"

	// ErrCodeBadOption indicates an out-of-range option value.
	ErrCodeBadOption ConfigErrorCode = "BAD_OPTION"

	// ErrCodeBadCheckpoint indicates a checkpoint inconsistent with the configuration.
	ErrCodeBadCheckpoint ConfigErrorCode = "BAD_CHECKPOINT"

	// ErrCodeNoRoot indicates a clone test without a root algebra.
	ErrCodeNoRoot ConfigErrorCode = "NO_ROOT"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func configError(code ConfigErrorCode, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is a ConfigError with the given code.
// An empty code matches any ConfigError.
func IsConfigError(err error, code ConfigErrorCode) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return code == "" || ce.Code == code
	}
	return false
}

// MismatchError is returned by CompareRuns when two runs disagree.
type MismatchError struct {
	Diffs []string
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("runs differ: %s", strings.Join(e.Diffs, "; "))
}

// IsMismatch reports whether err is a MismatchError.
func IsMismatch(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}

// WorkerFault records a worker that panicked while expanding a chunk.
type WorkerFault struct {
	Worker int
	Chunk  *Chunk
	Value  any
}

// Error implements the error interface.
func (e *WorkerFault) Error() string {
	if e.Chunk != nil {
		return fmt.Sprintf("worker %d panicked on %s: %v", e.Worker, e.Chunk, e.Value)
	}
	return fmt.Sprintf("worker %d panicked: %v", e.Worker, e.Value)
}

// IsWorkerFault reports whether err is a WorkerFault.
func IsWorkerFault(err error) bool {
	var wf *WorkerFault
	return errors.As(err, &wf)
}
