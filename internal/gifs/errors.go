package gifs

import (
	"errors"
	"fmt"

	"gif-api/internal/models"
	"gif-api/internal/storage"
)

// Kind classifies resolver and service failures for the request layer.
type Kind int

const (
	KindInvalidRequest Kind = iota + 1
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Suggestions is only populated for anime and
// character misses.
type Error struct {
	Kind        Kind
	Message     string
	Suggestions []string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

// Is matches the kind sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrConflict       = &Error{Kind: KindConflict}
)

func invalidf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// classify maps store and validation errors onto kinds. Unknown errors are
// returned wrapped with op.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return notFoundf("gif not found")
	case errors.Is(err, storage.ErrDuplicateURL):
		return &Error{Kind: KindConflict, Message: "a gif with this url already exists"}
	case errors.Is(err, models.ErrInvalidGif):
		return &Error{Kind: KindInvalidRequest, Message: err.Error()}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
