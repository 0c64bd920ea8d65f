package database

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Args carries the positional and named arguments captured for a job.
// The zero value is an empty argument list.
type Args struct {
	positional []any
	named      map[string]any
}

// NewArgs captures positional arguments.
func NewArgs(positional ...any) Args {
	return Args{positional: slices.Clone(positional)}
}

// With returns a copy of a with the named argument set.
func (a Args) With(name string, value any) Args {
	named := make(map[string]any, len(a.named)+1)
	maps.Copy(named, a.named)
	named[name] = value
	return Args{positional: a.positional, named: named}
}

// Named returns a named argument.
func (a Args) Named(name string) (any, bool) {
	v, ok := a.named[name]
	return v, ok
}

// String renders the arguments for log lines. Values implementing
// fmt.Stringer are rendered through it, which lets Secret hide itself.
func (a Args) String() string {
	parts := make([]string, 0, len(a.positional)+len(a.named))
	for _, v := range a.positional {
		parts = append(parts, formatArg(v))
	}
	for _, name := range slices.Sorted(maps.Keys(a.named)) {
		parts = append(parts, name+"="+formatArg(a.named[name]))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatArg(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Arg returns positional argument i as T.
func Arg[T any](a Args, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(a.positional) {
		return zero, fmt.Errorf("%w: missing argument %d", ErrBadArgument, i)
	}
	v, ok := a.positional[i].(T)
	if !ok {
		return zero, fmt.Errorf("%w: argument %d is %T, want %T", ErrBadArgument, i, a.positional[i], zero)
	}
	return v, nil
}

// OptionalArg returns positional argument i as T, or fallback when the
// argument was not supplied.
func OptionalArg[T any](a Args, i int, fallback T) (T, error) {
	if i >= len(a.positional) {
		return fallback, nil
	}
	return Arg[T](a, i)
}

// NamedArg returns the named argument as T, or fallback when it is absent.
func NamedArg[T any](a Args, name string, fallback T) (T, error) {
	raw, ok := a.named[name]
	if !ok {
		return fallback, nil
	}
	v, ok := raw.(T)
	if !ok {
		return fallback, fmt.Errorf("%w: argument %q is %T, want %T", ErrBadArgument, name, raw, fallback)
	}
	return v, nil
}

// Secret is a string argument that renders redacted in logs.
type Secret string

func (Secret) String() string { return "[redacted]" }
