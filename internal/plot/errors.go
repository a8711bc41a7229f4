package plot

import (
	"errors"
	"fmt"
)

// ErrSuperseded is returned by pipeline stages that stopped because a newer
// generation became current. It is never shown to the user.
var ErrSuperseded = errors.New("superseded by a newer generation")

// TransportError is a failed HTTP exchange with the backend.
type TransportError struct {
	Op         string // "submit" or "status"
	StatusCode int    // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend returned status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Diagnostic is the optional detail attached to a backend computation error.
type Diagnostic struct {
	Parameters map[string]any `json:"parameters,omitempty"`
	StackTrace string         `json:"stack_trace,omitempty"`
}

// DomainError means the task ran but the statistic computation failed.
// Message and Detail are reported verbatim from the backend.
type DomainError struct {
	TaskID  string
	Message string
	Detail  *Diagnostic
}

func (e *DomainError) Error() string {
	if e.Message == "" {
		return "plot computation failed"
	}
	return "plot computation failed: " + e.Message
}

// TimeoutError means the poll attempts ran out before the task settled.
type TimeoutError struct {
	TaskID   string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s did not settle after %d status checks", e.TaskID, e.Attempts)
}

// RenderError means a surface never became ready. It is logged, never shown.
type RenderError struct {
	SurfaceKey string
	Reason     string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("surface %q: %s", e.SurfaceKey, e.Reason)
}

// PartialFailure describes a fan-out where some, but not all, facets failed.
type PartialFailure struct {
	Failed int
	Total  int
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("%d of %d facets failed", e.Failed, e.Total)
}

// Kind groups errors for display.
type Kind int

const (
	KindNone Kind = iota
	KindTransport
	KindDomain
	KindTimeout
	KindRender
	KindPartial
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransport:
		return "transport"
	case KindDomain:
		return "domain"
	case KindTimeout:
		return "timeout"
	case KindRender:
		return "render"
	case KindPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// Classify maps err onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var (
		terr *TransportError
		derr *DomainError
		toer *TimeoutError
		rerr *RenderError
		perr *PartialFailure
	)
	switch {
	case errors.As(err, &derr):
		return KindDomain
	case errors.As(err, &toer):
		return KindTimeout
	case errors.As(err, &terr):
		return KindTransport
	case errors.As(err, &rerr):
		return KindRender
	case errors.As(err, &perr):
		return KindPartial
	default:
		return KindUnknown
	}
}
