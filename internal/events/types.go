// Package events is the in-process channel that carries lifecycle and host
// signals between the coordinator, the power and idle bridges, and the data
// store.
package events

import (
	"fmt"
	"time"
)

// Type names one event in the closed set below
type Type string

const (
	ActivationRequested Type = "activation-requested"
	IdleTimeRequested   Type = "idle-time-requested"
	HostSuspend         Type = "host-suspend"
	HostResume          Type = "host-resume"
	HostShutdown        Type = "host-shutdown"
	AllWindowsClosed    Type = "all-windows-closed"
	AppShutdown         Type = "app-shutdown"
	AppClose            Type = "app-close"
)

// Types lists every known event type in a stable order
var Types = []Type{
	ActivationRequested,
	IdleTimeRequested,
	HostSuspend,
	HostResume,
	HostShutdown,
	AllWindowsClosed,
	AppShutdown,
	AppClose,
}

// Known reports whether t is part of the closed set
func (t Type) Known() bool {
	_, ok := payloadKinds[t]
	return ok
}

// ActivationSource says what asked for the window
type ActivationSource string

const (
	SourceSecondInstance ActivationSource = "second-instance"
	SourceReactivate     ActivationSource = "reactivate"
)

// Activation is the payload of ActivationRequested
type Activation struct {
	Source     ActivationSource `json:"source"`
	Args       []string         `json:"args,omitempty"`
	WorkingDir string           `json:"working_dir,omitempty"`
}

// IdleRequest is the payload of IdleTimeRequested
type IdleRequest struct {
	RequestID string `json:"request_id"`
}

// PowerSignal is the payload of HostSuspend, HostResume and HostShutdown
type PowerSignal struct {
	Source string `json:"source"` // logind, signal, sleepwatch
}

// WindowsClosed is the payload of AllWindowsClosed
type WindowsClosed struct {
	QuitRequested bool `json:"quit_requested"`
}

// Shutdown is the payload of AppShutdown
type Shutdown struct {
	Reason string `json:"reason"`
}

// Close is the payload of AppClose
type Close struct {
	Reason string `json:"reason"`
}

// Shutdown and close reasons
const (
	ReasonWindowsClosed = "all-windows-closed"
	ReasonHostShutdown  = "host-shutdown"
	ReasonInterrupt     = "interrupt"
	ReasonHostSuspend   = "host-suspend"
)

var payloadKinds = map[Type]string{
	ActivationRequested: "events.Activation",
	IdleTimeRequested:   "events.IdleRequest",
	HostSuspend:         "events.PowerSignal",
	HostResume:          "events.PowerSignal",
	HostShutdown:        "events.PowerSignal",
	AllWindowsClosed:    "events.WindowsClosed",
	AppShutdown:         "events.Shutdown",
	AppClose:            "events.Close",
}

// checkPayload verifies that payload is the one struct type t carries
func checkPayload(t Type, payload any) error {
	want, ok := payloadKinds[t]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	var got string
	switch payload.(type) {
	case Activation:
		got = "events.Activation"
	case IdleRequest:
		got = "events.IdleRequest"
	case PowerSignal:
		got = "events.PowerSignal"
	case WindowsClosed:
		got = "events.WindowsClosed"
	case Shutdown:
		got = "events.Shutdown"
	case Close:
		got = "events.Close"
	default:
		got = fmt.Sprintf("%T", payload)
	}

	if got != want {
		return fmt.Errorf("%w: %s wants %s, got %s", ErrPayloadMismatch, t, want, got)
	}
	return nil
}

// Event is one published occurrence
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"ts"`
	Payload   any       `json:"payload"`
}
