// Package broadcast defines the wire protocol carried on the shared patient
// intake channel. Two message kinds exist, FormUpdate and StatusUpdate, and
// both travel inside an Envelope that names the channel topic and event.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// EnvelopeType is the only frame type used on the channel.
const EnvelopeType = "broadcast"

// Event discriminates the payload carried by an Envelope.
type Event string

const (
	EventFormUpdate   Event = "form_update"
	EventStatusUpdate Event = "status_update"
)

// Status is the presence state of a patient session.
type Status string

const (
	StatusTyping    Status = "typing"
	StatusIdle      Status = "idle"
	StatusSubmitted Status = "submitted"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTyping, StatusIdle, StatusSubmitted:
		return true
	}
	return false
}

// Errors returned by Decode for payloads that must be dropped.
var (
	ErrUnknownEvent     = errors.New("unknown event")
	ErrMissingPayload   = errors.New("payload is required")
	ErrMissingPatientID = errors.New("patientId is required")
	ErrMissingData      = errors.New("data is required")
	ErrMissingStatus    = errors.New("status is required")
	ErrUnknownStatus    = errors.New("unknown status")
)

// Envelope is a single frame on the channel.
type Envelope struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Event   Event           `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is either a FormUpdate or a StatusUpdate.
type Message interface {
	Kind() Event
	Session() string
}

// FormUpdate carries the full current record of one patient session. Data is
// a flat map so that receivers can tell which keys were actually present.
type FormUpdate struct {
	PatientID string            `json:"patientId"`
	Data      map[string]string `json:"data"`
}

func (FormUpdate) Kind() Event        { return EventFormUpdate }
func (m FormUpdate) Session() string { return m.PatientID }

// StatusUpdate carries the presence status of one patient session.
type StatusUpdate struct {
	PatientID string `json:"patientId"`
	Status    Status `json:"status"`
}

func (StatusUpdate) Kind() Event        { return EventStatusUpdate }
func (m StatusUpdate) Session() string { return m.PatientID }

// Publisher sends envelopes to every subscriber of env.Topic.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Subscriber registers fn for envelopes on topic. The returned func removes
// the subscription and is safe to call more than once.
type Subscriber interface {
	Subscribe(topic string, fn func(Envelope)) (unsubscribe func())
}

// Encode wraps msg into an envelope addressed to topic.
func Encode(topic string, msg Message) (Envelope, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", msg.Kind(), err)
	}
	return Envelope{
		Type:    EnvelopeType,
		Topic:   topic,
		Event:   msg.Kind(),
		Payload: payload,
	}, nil
}

// Decode validates env and returns the typed message it carries. Any missing
// required field is an error; callers drop such envelopes without applying
// them.
func Decode(env Envelope) (Message, error) {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil, ErrMissingPayload
	}

	switch env.Event {
	case EventFormUpdate:
		var m FormUpdate
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		if m.PatientID == "" {
			return nil, ErrMissingPatientID
		}
		if m.Data == nil {
			return nil, ErrMissingData
		}
		return m, nil

	case EventStatusUpdate:
		var m StatusUpdate
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		if m.PatientID == "" {
			return nil, ErrMissingPatientID
		}
		if m.Status == "" {
			return nil, ErrMissingStatus
		}
		if !m.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, m.Status)
		}
		return m, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}
