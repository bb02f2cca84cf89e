package remote

import (
	"errors"
	"fmt"
)

// Kind classifies why a remote fetch failed.
type Kind string

const (
	// KindNetwork means the request never completed.
	KindNetwork Kind = "network"
	// KindHTTP means the server answered with a non-2xx status.
	KindHTTP Kind = "http"
	// KindParse means the body was not the JSON we expected.
	KindParse Kind = "parse"
)

// Error is the single failure shape returned by every Client method.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// ServerMessage is the "error" field of a non-2xx body, empty when the
	// server gave none.
	ServerMessage string
	Err           error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr, true
	}
	return nil, false
}
