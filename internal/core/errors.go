package core

import (
	"errors"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"flakekit/internal/types"
)

// Well-known message prefixes. The CLI exit-code mapping and the
// predicates below key on these, so error sites must go through the
// constructors.
const (
	msgParse         = "invalid flake reference"
	msgCyclicAlias   = "cyclic flake alias"
	msgCyclicFlake   = "cyclic flake dependency"
	msgAliasNotFound = "flake alias not found"
	msgNotUpdatable  = "cannot update lock of non-path flake"
	msgFetch         = "fetch failed"
	msgEval          = "flake evaluation failed"
)

func errParse(text string, cause error) error {
	if cause != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(msgParse + ": " + text).
			WithCause(cause)
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(msgParse + ": " + text)
}

func errCyclicAlias(alias string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(msgCyclicAlias + ": " + alias)
}

func errCyclicFlake(identity string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(msgCyclicFlake + ": " + identity)
}

// ErrAliasNotFound reports a pin or remove target missing from every
// consulted registry tier.
func ErrAliasNotFound(alias string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(msgAliasNotFound + ": " + alias)
}

// ErrNotUpdatable rejects a lock update on anything but a path flake.
// A fully concrete upstream ref is already locked by its fixed rev.
func ErrNotUpdatable(ref types.FlakeRef) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(msgNotUpdatable + ": " + ref.String())
}

// ErrFetch wraps a fetch collaborator failure. Retry policy, if any,
// belongs to the fetcher, not to resolution.
func ErrFetch(ref types.FlakeRef, cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(msgFetch + ": " + ref.String()).
		WithCause(cause)
}

// ErrEval wraps an evaluator failure on a fetched source.
func ErrEval(storePath string, cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(msgEval + ": " + storePath).
		WithCause(cause)
}

func hasPrefix(err error, prefix string) bool {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) {
		return strings.HasPrefix(builder.Msg, prefix)
	}
	return false
}

func IsParseError(err error) bool      { return hasPrefix(err, msgParse) }
func IsCyclicAlias(err error) bool     { return hasPrefix(err, msgCyclicAlias) }
func IsCyclicFlake(err error) bool     { return hasPrefix(err, msgCyclicFlake) }
func IsAliasNotFound(err error) bool   { return hasPrefix(err, msgAliasNotFound) }
func IsNotUpdatable(err error) bool    { return hasPrefix(err, msgNotUpdatable) }
func IsFetchError(err error) bool      { return hasPrefix(err, msgFetch) }
func IsEvaluationError(err error) bool { return hasPrefix(err, msgEval) }
