package domain

import (
	"errors"
	"fmt"
)

// DefaultLoadError is shown when a failed fetch carries no better message.
const DefaultLoadError = "Failed to load chart data"

// TransportError is a failed upstream fetch. Status is 0 when no HTTP
// response was received. Msg is the upstream's own message, if it sent one.
type TransportError struct {
	Status int
	Msg    string
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Msg != "" && e.Status != 0:
		return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("upstream returned %d: %v", e.Status, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Status != 0:
		return fmt.Sprintf("upstream returned %d", e.Status)
	}
	return DefaultLoadError
}

func (e *TransportError) Unwrap() error { return e.Err }

// UserMessage picks the banner text for a failed refresh: the upstream
// message first, then the error text, then DefaultLoadError.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(err, &te) && te.Msg != "" {
		return te.Msg
	}
	if s := err.Error(); s != "" {
		return s
	}
	return DefaultLoadError
}
