package event

import (
	"encoding/json"
	"fmt"
	"io"
)

// Type is the event discriminator written to the "type" field.
type Type string

// Event types.
const (
	TypeChunk     Type = "chunk"
	TypeStatus    Type = "status"
	TypeIntent    Type = "intent"
	TypeResult    Type = "result"
	TypeInterrupt Type = "interrupt"
	TypeError     Type = "error"
	TypeDone      Type = "done"
)

// Event is a single streamed notification. Only the fields relevant to
// Type are populated; the rest are omitted from the wire form.
type Event struct {
	Type    Type     `json:"type"`
	Node    string   `json:"node,omitempty"`
	Content string   `json:"content,omitempty"`
	Route   string   `json:"route,omitempty"`
	Plan    []string `json:"plan,omitempty"`
	Doc     string   `json:"doc,omitempty"`
	Message string   `json:"message,omitempty"`
	Result  string   `json:"result,omitempty"`
}

// Chunk creates a text fragment event produced by a node.
func Chunk(node, content string) Event {
	return Event{Type: TypeChunk, Node: node, Content: content}
}

// Status creates a progress notice for a node.
func Status(node, content string) Event {
	return Event{Type: TypeStatus, Node: node, Content: content}
}

// Intent creates the classification event.
func Intent(route, content string, plan []string) Event {
	return Event{Type: TypeIntent, Route: route, Content: content, Plan: plan}
}

// Result creates the final report event.
func Result(content string) Event {
	return Event{Type: TypeResult, Content: content}
}

// Interrupt creates the pause event carrying the current draft.
func Interrupt(doc string) Event {
	return Event{Type: TypeInterrupt, Doc: doc}
}

// Error creates an error event.
func Error(message string) Event {
	return Event{Type: TypeError, Message: message}
}

// Done creates the completion event used by single-shot flows.
func Done(result string) Event {
	return Event{Type: TypeDone, Result: result}
}

// WriteSSE writes e as one Server-Sent Events frame.
func WriteSSE(w io.Writer, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}
