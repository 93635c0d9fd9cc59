package models

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates the streaming event envelope.
type EventType string

const (
	EventCommandCreated    EventType = "command_created"
	EventCommandUpdated    EventType = "command_updated"
	EventCommandDeleted    EventType = "command_deleted"
	EventExecutionStarted  EventType = "execution_started"
	EventExecutionUpdated  EventType = "execution_updated"
	EventExecutionFinished EventType = "execution_finished"
)

// Event is a decoded streaming event. Exactly one of Command, Execution or
// DeletedID is populated, per Type:
//
//	command_created, command_updated      -> Command
//	command_deleted                       -> DeletedID
//	execution_started, execution_updated,
//	execution_finished                    -> Execution
type Event struct {
	Command   *CommandDefinition
	Execution *ExecutionLog
	Type      EventType
	DeletedID string
}

// ProtocolError reports an inbound payload that does not conform to the
// event envelope. The connection that delivered it stays usable; the
// payload is dropped.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

// EncodeEvent renders an Event back into the wire envelope. Inverse of
// ParseEvent; used by the in-process authority replica.
func EncodeEvent(ev Event) ([]byte, error) {
	var payload any
	switch ev.Type {
	case EventCommandCreated, EventCommandUpdated:
		payload = ev.Command
	case EventCommandDeleted:
		payload = deletePayload{ID: ev.DeletedID}
	case EventExecutionStarted, EventExecutionUpdated, EventExecutionFinished:
		payload = ev.Execution
	default:
		return nil, &ProtocolError{Reason: fmt.Sprintf("unknown event type %q", ev.Type)}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventEnvelope{Type: ev.Type, Payload: raw})
}

type eventEnvelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type deletePayload struct {
	ID string `json:"id"`
}

// ParseEvent decodes a raw frame into an Event. Unknown types and
// undecodable payloads yield a *ProtocolError.
func ParseEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, &ProtocolError{Reason: fmt.Sprintf("malformed envelope: %v", err)}
	}

	switch env.Type {
	case EventCommandCreated, EventCommandUpdated:
		var def CommandDefinition
		if err := json.Unmarshal(env.Payload, &def); err != nil {
			return Event{}, &ProtocolError{Reason: fmt.Sprintf("%s: bad command payload: %v", env.Type, err)}
		}
		if def.ID == "" {
			return Event{}, &ProtocolError{Reason: string(env.Type) + ": command payload missing id"}
		}
		return Event{Type: env.Type, Command: &def}, nil

	case EventCommandDeleted:
		var del deletePayload
		if err := json.Unmarshal(env.Payload, &del); err != nil {
			return Event{}, &ProtocolError{Reason: fmt.Sprintf("command_deleted: bad payload: %v", err)}
		}
		if del.ID == "" {
			return Event{}, &ProtocolError{Reason: "command_deleted: payload missing id"}
		}
		return Event{Type: env.Type, DeletedID: del.ID}, nil

	case EventExecutionStarted, EventExecutionUpdated, EventExecutionFinished:
		var entry ExecutionLog
		if err := json.Unmarshal(env.Payload, &entry); err != nil {
			return Event{}, &ProtocolError{Reason: fmt.Sprintf("%s: bad execution payload: %v", env.Type, err)}
		}
		if entry.ID == "" {
			return Event{}, &ProtocolError{Reason: string(env.Type) + ": execution payload missing id"}
		}
		return Event{Type: env.Type, Execution: &entry}, nil

	default:
		return Event{}, &ProtocolError{Reason: fmt.Sprintf("unknown event type %q", env.Type)}
	}
}
