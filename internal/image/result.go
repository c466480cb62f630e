package image

import (
	"errors"
	"fmt"
)

type Reason string

const (
	InvalidRequest        Reason = "InvalidRequest"
	EnvironmentNotReady   Reason = "EnvironmentNotReady"
	CredentialUnavailable Reason = "CredentialUnavailable"
	ChatCreationFailed    Reason = "ChatCreationFailed"
	NoResourceFound       Reason = "NoResourceFound"
	FetchFailed           Reason = "FetchFailed"
	InternalError         Reason = "InternalError"
)

// Failure is the error half of a Result. Excerpt is only set for
// NoResourceFound.
type Failure struct {
	Reason  Reason
	Message string
	Excerpt string
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s: %s", f.Reason, f.Message)
}

func fail(reason Reason, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	if err == nil {
		return &Failure{Reason: reason}
	}
	return &Failure{Reason: reason, Message: err.Error()}
}

// Result holds either URL and Data, or a Failure. Never both.
type Result struct {
	URL     string
	Data    []byte
	Failure *Failure
}

func (r Result) OK() bool {
	return r.Failure == nil
}

func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}
