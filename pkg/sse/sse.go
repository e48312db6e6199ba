// Package sse renders an orchestrator run's event.Event stream onto
// the wire as Server-Sent Events: one "event: <kind>\ndata: <json>\n\n"
// frame per event, flushed immediately so a client sees each step as
// it happens rather than buffered at the end of the run.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kadirpekel/sentinel/pkg/event"
)

// thoughtFrame, actionFrame, observationFrame, tokenFrame, errorFrame,
// and doneFrame are the JSON bodies written for each event.Kind. Only
// the fields meaningful for that kind are populated on event.Event, so
// each frame type picks out just those.
type thoughtFrame struct {
	Text string `json:"text"`
}

type actionFrame struct {
	ToolCallID string         `json:"tool_call_id"`
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments"`
}

type observationFrame struct {
	ToolCallID string `json:"tool_call_id"`
	Tool       string `json:"tool"`
	Text       string `json:"text"`
}

type tokenFrame struct {
	Text string `json:"text"`
}

type errorFrame struct {
	Category string `json:"category"`
	Detail   string `json:"detail"`
}

type doneFrame struct {
	SessionID string `json:"session_id"`
}

// Writer streams event.Event values as SSE frames to an
// http.ResponseWriter, flushing after every frame.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w's headers for an SSE response and returns a
// Writer. It returns an error if w does not support flushing, since an
// unflushed SSE response would only reach the client once fully
// buffered, defeating the point of streaming.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("sse: response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent writes one frame and flushes it.
func (sw *Writer) WriteEvent(ev event.Event) error {
	name, data := frame(ev)

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse: marshal %s frame: %w", name, err)
	}

	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", name, body); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// Stream drains ch, writing one SSE frame per event, until ch closes
// or a write fails. It does not watch a context itself; the
// orchestrator closes ch when its run is cancelled.
func (sw *Writer) Stream(ch <-chan event.Event) error {
	for ev := range ch {
		if err := sw.WriteEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

func frame(ev event.Event) (string, any) {
	switch ev.Kind {
	case event.KindThought:
		return "thought", thoughtFrame{Text: ev.Text}
	case event.KindAction:
		return "action", actionFrame{ToolCallID: ev.ToolCallID, Tool: ev.Tool, Arguments: ev.Arguments}
	case event.KindObservation:
		return "observation", observationFrame{ToolCallID: ev.ToolCallID, Tool: ev.Tool, Text: ev.Text}
	case event.KindToken:
		return "token", tokenFrame{Text: ev.Text}
	case event.KindError:
		return "error", errorFrame{Category: string(ev.Category), Detail: ev.Detail}
	case event.KindDone:
		return "done", doneFrame{SessionID: ev.SessionID}
	default:
		return "unknown", struct{}{}
	}
}
