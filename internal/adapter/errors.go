package adapter

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

// ErrorKind classifies a failed backend call.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindBackend
	KindUnauthorized
	KindUnexpected
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBackend:
		return "backend"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Fallback messages shown when the backend gives nothing usable.
const (
	MessageRequestFailed = "Request failed"
	MessageUnexpected    = "Unexpected response from server"
	MessageCancelled     = "Request cancelled"
)

// unauthorizedMarkers are matched case-insensitively against error text for
// backends that do not report a structured status.
var unauthorizedMarkers = []string{"unauthorized", "invalid token"}

// backendMessager is implemented by errors that carry the backend's own wording.
type backendMessager interface {
	BackendMessage() string
}

// IsUnauthorized reports whether err is an authorization failure. A structured
// ErrUnauthorized wins; otherwise the message text is inspected.
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, vectorstore.ErrUnauthorized) {
		return true
	}
	text := err.Error()
	for _, marker := range unauthorizedMarkers {
		if containsFold(text, marker) {
			return true
		}
	}
	return false
}

// Classify places err in the error taxonomy.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if IsUnauthorized(err) {
		return KindUnauthorized
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindUnexpected
	}
	return KindBackend
}

// Message turns err into the human-readable text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return MessageCancelled
	}
	if Classify(err) == KindUnexpected {
		return MessageUnexpected
	}

	var bm backendMessager
	if errors.As(err, &bm) {
		if msg := bm.BackendMessage(); msg != "" {
			return msg
		}
		return MessageRequestFailed
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return MessageRequestFailed
}
