package transcript

import (
	"errors"
	"fmt"
)

// Kind classifies a transcript failure.
type Kind int

const (
	// KindDecode means the request body could not be turned into transcript text.
	KindDecode Kind = iota + 1
	// KindStorage means the daily log file could not be created, written or read.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is returned by every operation in this package.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func decodeErr(op string, err error) error {
	return &Error{Kind: KindDecode, Op: op, Err: err}
}

func storageErr(op string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// KindOf reports the Kind of err, or 0 if err did not come from this package.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}
