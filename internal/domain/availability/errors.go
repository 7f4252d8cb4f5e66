package availability

import (
	"errors"
	"fmt"
)

// Reason explains why no slots can be offered for the selected date.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonNoSchedule     Reason = "no-schedule-configured"
	ReasonNoSlotsForDate Reason = "no-slots-for-date"
	ReasonTransport      Reason = "transport-failure"
)

const (
	MessageNoSchedule     = "This business hasn't set up its availability yet. Please check back later or contact the business directly."
	MessageNoSlotsForDate = "No time slots available for this date. It may be fully booked or blocked. Please pick another date."
	MessageTransport      = "Failed to fetch available time slots"
)

// Message is the copy shown for r. upstream replaces the transport fallback when set.
func (r Reason) Message(upstream string) string {
	switch r {
	case ReasonNoSchedule:
		return MessageNoSchedule
	case ReasonNoSlotsForDate:
		return MessageNoSlotsForDate
	case ReasonTransport:
		if upstream != "" {
			return upstream
		}
		return MessageTransport
	default:
		return ""
	}
}

// FetchError is a failed availability fetch. Message is the upstream
// message when the scheduling authority sent one.
type FetchError struct {
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = MessageTransport
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status=%d)", msg, e.Status)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// UpstreamMessage extracts the upstream message carried by err, if any.
func UpstreamMessage(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Message
	}
	return ""
}
