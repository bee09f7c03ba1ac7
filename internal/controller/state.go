// Package controller holds the per-screen orchestration of the console: load
// on mount, submit handlers, confirmation steps and backup job polling.
//
// Each concern tracks its own Status so that unrelated operations (loading
// index metadata, submitting a search) never share a flag.
package controller

import (
	"encoding/json"
	"errors"
)

// Phase is the lifecycle position of a single concern.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// ErrInFlight is returned when a submit arrives while the same concern is loading.
var ErrInFlight = errors.New("request already in progress")

// Status is a tagged union over the four phases. Data is only reachable in
// PhaseSuccess and the error message only in PhaseError.
type Status[T any] struct {
	phase Phase
	data  T
	err   string
}

// Idle returns the initial status.
func Idle[T any]() Status[T] {
	return Status[T]{phase: PhaseIdle}
}

// Loading returns a status for an operation in flight.
func Loading[T any]() Status[T] {
	return Status[T]{phase: PhaseLoading}
}

// Succeeded returns a success status carrying v.
func Succeeded[T any](v T) Status[T] {
	return Status[T]{phase: PhaseSuccess, data: v}
}

// Failed returns an error status carrying msg.
func Failed[T any](msg string) Status[T] {
	return Status[T]{phase: PhaseError, err: msg}
}

// Phase returns the current phase. The zero Status is idle.
func (s Status[T]) Phase() Phase {
	if s.phase == "" {
		return PhaseIdle
	}
	return s.phase
}

// Data returns the payload of a successful status.
func (s Status[T]) Data() (T, bool) {
	return s.data, s.phase == PhaseSuccess
}

// Err returns the message of a failed status, or "".
func (s Status[T]) Err() string {
	return s.err
}

func (s Status[T]) IsLoading() bool { return s.phase == PhaseLoading }
func (s Status[T]) IsSuccess() bool { return s.phase == PhaseSuccess }
func (s Status[T]) IsError() bool   { return s.phase == PhaseError }

type statusJSON[T any] struct {
	Phase Phase  `json:"phase"`
	Error string `json:"error,omitempty"`
	Data  *T     `json:"data,omitempty"`
}

func (s Status[T]) MarshalJSON() ([]byte, error) {
	out := statusJSON[T]{Phase: s.Phase(), Error: s.err}
	if s.phase == PhaseSuccess {
		out.Data = &s.data
	}
	return json.Marshal(out)
}
