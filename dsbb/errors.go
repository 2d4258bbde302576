package dsbb

import (
	"errors"
	"fmt"
)

var (
	_ error = (*ConfigError)(nil)

	// ErrInvalidConfig signals that run parameters are malformed: n below 1,
	// f exceeding n, or a Byzantine id outside [0, n).
	ErrInvalidConfig = errors.New("invalid run configuration")
	// ErrOutOfSequence signals that a round API was invoked out of order:
	// AdvanceRound called when the round counter already exceeds f+1.
	ErrOutOfSequence = errors.New("round advanced out of sequence")
	// ErrNotTerminated signals that Finalize was called before round f+1
	// completed.
	ErrNotTerminated = errors.New("run has not yet terminated")
	// ErrIncompleteRun signals that the property verifier was handed a
	// snapshot that does not describe a run.
	ErrIncompleteRun = errors.New("incomplete run snapshot")

	// ErrDuplicateSigner signals an attempt to extend a signature chain with
	// an identity it already carries. A correct party never re-signs, so
	// under correct engine use this is a programming-invariant violation,
	// not a recoverable condition.
	ErrDuplicateSigner = errors.New("signer already present in chain")
	// ErrEmptyChain signals first-signer inspection of an empty chain. The
	// sender always signs first, so this too marks an invariant violation.
	ErrEmptyChain = errors.New("empty signature chain")
)

// ConfigError wraps ErrInvalidConfig with detail about which parameter was
// rejected.
type ConfigError struct {
	detail string
}

func newConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{detail: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidConfig, e.detail)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}
