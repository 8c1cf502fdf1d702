package testutil

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

// SSEEvent 解析后的单个 SSE 事件
type SSEEvent struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"-"`
}

// ReadSSEEvents 解析 text/event-stream 响应体中的全部 data 帧
func ReadSSEEvents(t *testing.T, body io.Reader) []SSEEvent {
	t.Helper()

	var events []SSEEvent
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		raw := strings.TrimPrefix(line, "data: ")

		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			t.Fatalf("invalid SSE frame %q: %v", raw, err)
		}

		event := SSEEvent{Payload: payload}
		if typ, ok := payload["type"].(string); ok {
			event.Type = typ
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("failed to read SSE stream: %v", err)
	}
	return events
}
