// Package errors defines the sentinel errors shared by every stage of an
// index build and a BuildError wrapper that records which stage failed.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrMalformedRecord       = errors.New("malformed posting record")
	ErrUnorderedStream       = errors.New("posting stream out of order")
	ErrCorruptIndex          = errors.New("corrupt index")
	ErrIncompleteBuild       = errors.New("incomplete build")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrInternal              = errors.New("internal error")
)

// Exit codes returned by the indexbuilder command.
const (
	ExitOK         = 0
	ExitInternal   = 1
	ExitUsage      = 2
	ExitInput      = 3
	ExitCorrupt    = 4
	ExitDependency = 5
)

// Stage names a step of the build pipeline.
type Stage string

const (
	StageConfig    Stage = "config"
	StagePreflight Stage = "preflight"
	StageEmit      Stage = "emit"
	StageSort      Stage = "sort"
	StageMerge     Stage = "merge"
	StageInvert    Stage = "invert"
	StageLexicon   Stage = "lexicon"
	StageManifest  Stage = "manifest"
	StageVerify    Stage = "verify"
	StagePublish   Stage = "publish"
)

type BuildError struct {
	Stage   Stage
	Err     error
	Message string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Err.Error(), e.Message)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

func New(stage Stage, err error, message string) *BuildError {
	return &BuildError{
		Stage:   stage,
		Err:     err,
		Message: message,
	}
}

func Newf(stage Stage, err error, format string, args ...any) *BuildError {
	return &BuildError{
		Stage:   stage,
		Err:     err,
		Message: fmt.Sprintf(format, args...),
	}
}

// StageOf reports the stage recorded on err, or "" when err carries none.
func StageOf(err error) Stage {
	var buildErr *BuildError
	if errors.As(err, &buildErr) {
		return buildErr.Stage
	}
	return ""
}

// ExitCode maps an error returned by a build or verify run to a process exit
// status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedRecord):
		return ExitInput
	case errors.Is(err, ErrCorruptIndex), errors.Is(err, ErrIncompleteBuild),
		errors.Is(err, ErrUnorderedStream):
		return ExitCorrupt
	case errors.Is(err, ErrDependencyUnavailable):
		return ExitDependency
	default:
		return ExitInternal
	}
}
