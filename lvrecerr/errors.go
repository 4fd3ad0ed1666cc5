// Package lvrecerr defines the error kinds surfaced across network
// build, LM load, and decode, each tagged with an errors.Is-compatible
// sentinel so callers can branch on kind instead of matching strings.
package lvrecerr

import "fmt"

// Kind distinguishes the error taxonomies named in spec.md §7. Kinds
// fatal at build time abort the whole run; kinds recoverable
// per-utterance let the caller continue with the next utterance.
type Kind int

const (
	_ Kind = iota
	ConfigError
	ResourceMissing
	NetworkTooLarge
	LmParseError
	LmLookupMiss
	DictStructureError
	RuntimePruneStarvation
	LatticeFormatError
)

// Error lets a bare Kind value serve as an errors.Is target, e.g.
// errors.Is(err, lvrecerr.ConfigError).
func (k Kind) Error() string { return k.String() }

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "ConfigError"
	case ResourceMissing:
		return "ResourceMissing"
	case NetworkTooLarge:
		return "NetworkTooLarge"
	case LmParseError:
		return "LmParseError"
	case LmLookupMiss:
		return "LmLookupMiss"
	case DictStructureError:
		return "DictStructureError"
	case RuntimePruneStarvation:
		return "RuntimePruneStarvation"
	case LatticeFormatError:
		return "LatticeFormatError"
	default:
		return "UnknownError"
	}
}

// Fatal reports whether errors of this kind abort the whole run rather
// than just the current utterance (spec.md §7's "fatal at build" vs.
// "surfaces as ... not fatal" distinction).
func (k Kind) Fatal() bool {
	switch k {
	case RuntimePruneStarvation, LmLookupMiss:
		return false
	case LatticeFormatError:
		return false // fatal per utterance, decoder continues with next
	default:
		return true
	}
}

// Error wraps an underlying cause with a Kind, so errors.Is(err,
// lvrecerr.ResourceMissing) works without string matching.
type Error struct {
	Kind    Kind
	Context string // e.g. a triphone label, a config key, a file path
	Err     error
}

func (e *Error) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, SomeKind) match any *Error carrying that
// Kind, by treating a bare Kind value as a sentinel target.
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	return false
}

// New builds an *Error of the given kind wrapping err, with optional
// context (e.g. the triphone or config key implicated).
func New(kind Kind, context string, err error) *Error {
	return &Error{Kind: kind, Context: context, Err: err}
}

// Errorf is New with a formatted cause, for call sites that don't
// already have an error value to wrap.
func Errorf(kind Kind, context, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Context: context, Err: fmt.Errorf(format, args...)}
}
