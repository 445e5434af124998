package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrNoActiveContext = errors.New("no active conversation context")
	ErrTimeout         = errors.New("provider request timed out")
)

// AnalysisError reports that at least one analysis sub-request failed.
// No partial result accompanies it.
type AnalysisError struct {
	Cause error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyzing image: %v", e.Cause)
}

func (e *AnalysisError) Unwrap() error { return e.Cause }

// SynthesisError is never fatal to a reply; callers degrade to "no audio".
type SynthesisError struct {
	Cause error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesizing speech: %v", e.Cause)
}

func (e *SynthesisError) Unwrap() error { return e.Cause }

type OrchestratorErrorKind int

const (
	NoActiveContext OrchestratorErrorKind = iota + 1
	ProviderFailure
)

func (k OrchestratorErrorKind) String() string {
	switch k {
	case NoActiveContext:
		return "no active context"
	case ProviderFailure:
		return "provider failure"
	default:
		return "unknown"
	}
}

type OrchestratorError struct {
	Kind  OrchestratorErrorKind
	Cause error
}

func (e *OrchestratorError) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *OrchestratorError) Unwrap() error { return e.Cause }
