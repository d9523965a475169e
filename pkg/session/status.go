package session

import (
	"fmt"

	"github.com/pkg/errors"
)

// Flow names one of the independent operation families of a session.
type Flow string

const (
	FlowChat   Flow = "chat"
	FlowSearch Flow = "search"
	FlowEmbed  Flow = "embed"
)

// Flows lists every flow in a stable order.
var Flows = []Flow{FlowChat, FlowSearch, FlowEmbed}

// Phase is the lifecycle position of a flow.
type Phase int

const (
	Idle Phase = iota
	Pending
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Status is the transient state of one flow. Reason and Err are only set
// when Phase is Failed.
type Status struct {
	Phase  Phase
	Reason string
	Err    error
}

func (s Status) IsPending() bool { return s.Phase == Pending }

func (s Status) String() string {
	if s.Phase == Failed && s.Reason != "" {
		return fmt.Sprintf("failed(%s)", s.Reason)
	}
	return s.Phase.String()
}

// BusyError is returned when an operation is started while another one of the
// same flow is still pending. The rejected operation has no effect.
type BusyError struct {
	Flow       Flow
	DocumentID string
}

func (e *BusyError) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("%s: deletion of document %s is already in progress", e.Flow, e.DocumentID)
	}
	return fmt.Sprintf("%s: an operation is already in progress", e.Flow)
}

// IsBusy reports whether err is (or wraps) a BusyError.
func IsBusy(err error) bool {
	var be *BusyError
	return errors.As(err, &be)
}

// ErrNotPending is returned when a completion arrives for a flow that has no
// operation in flight. The completion is dropped.
var ErrNotPending = errors.New("no operation pending for this flow")

// reasoner is implemented by errors that carry a user-facing explanation.
type reasoner interface {
	Reason() string
}

// failureReason turns an error into the text surfaced to the user. fallback is
// used when err carries nothing better.
func failureReason(err error, fallback string) string {
	var r reasoner
	if errors.As(err, &r) {
		if text := r.Reason(); text != "" {
			return text
		}
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
