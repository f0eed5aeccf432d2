package websocket

import (
	"time"

	"github.com/fweiler/OpenSupplyCore/internal/vds"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Live parameter traffic
	MessageTypeParameterUpdate MessageType = "parameter_update"

	// Module-level events (trips, event clears, bridge errors)
	MessageTypeModuleEvent MessageType = "module_event"

	// System messages
	MessageTypeSystemStatus MessageType = "system_status"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ModuleEventData describes a module-level event pushed to subscribers.
type ModuleEventData struct {
	Module string `json:"module"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewParameterUpdateMessage wraps one successful transaction for broadcast.
func NewParameterUpdateMessage(u vds.Update) Message {
	return NewMessage(MessageTypeParameterUpdate, u)
}

func NewModuleEventMessage(module, kind, detail string) Message {
	return NewMessage(MessageTypeModuleEvent, ModuleEventData{
		Module: module,
		Kind:   kind,
		Detail: detail,
	})
}
