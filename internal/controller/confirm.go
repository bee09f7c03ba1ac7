package controller

import (
	"encoding/json"
	"errors"
	"sync"
)

var (
	// ErrNotRequested is returned when a destructive action is confirmed
	// without a matching pending request.
	ErrNotRequested = errors.New("confirmation required")
)

// Confirmation is the two-state modal guarding a destructive action. A
// request opens it for a target; only a confirm naming the same target
// releases the payload, and confirming or cancelling closes it.
type Confirmation[T any] struct {
	mu      sync.Mutex
	open    bool
	target  string
	payload T
}

// Request opens the modal for target.
func (c *Confirmation[T]) Request(target string, payload T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.target = target
	c.payload = payload
}

// Confirm closes the modal and returns the payload stored by Request.
func (c *Confirmation[T]) Confirm(target string) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	if !c.open || c.target != target {
		return zero, ErrNotRequested
	}
	payload := c.payload
	c.open = false
	c.target = ""
	c.payload = zero
	return payload, nil
}

// Cancel closes the modal without acting.
func (c *Confirmation[T]) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.open = false
	c.target = ""
	c.payload = zero
}

// Pending returns the target awaiting confirmation.
func (c *Confirmation[T]) Pending() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target, c.open
}

func (c *Confirmation[T]) MarshalJSON() ([]byte, error) {
	target, open := c.Pending()
	return json.Marshal(struct {
		Open   bool   `json:"open"`
		Target string `json:"target,omitempty"`
	}{open, target})
}
