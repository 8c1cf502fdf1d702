package llm

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// 上游事件类型
const (
	EventMessageStart      = "message_start"
	EventContentBlockDelta = "content_block_delta"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
)

// StreamEvent 上游事件流中的单个事件
type StreamEvent struct {
	Type  string
	Model string // message_start 携带
	Text  string // content_block_delta 携带
	Usage Usage  // message_start 携带输入用量，message_delta 携带累计输出用量
}

// StreamScanner 解析上游 SSE 事件流
// 仅做按行拆分与 data: 行解码，不做额外缓冲
type StreamScanner struct {
	scanner *bufio.Scanner
}

// NewStreamScanner 创建事件流扫描器
func NewStreamScanner(r io.Reader) *StreamScanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &StreamScanner{scanner: scanner}
}

// Next 返回下一个事件，流结束时返回 io.EOF
func (s *StreamScanner) Next() (*StreamEvent, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		event, err := parseStreamEvent([]byte(data))
		if err != nil {
			return nil, err
		}
		if event != nil {
			return event, nil
		}
	}

	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// parseStreamEvent 解码单个 data 负载，未知事件类型返回 nil
func parseStreamEvent(data []byte) (*StreamEvent, error) {
	var wire struct {
		Type    string `json:"type"`
		Message struct {
			Model string `json:"model"`
			Usage Usage  `json:"usage"`
		} `json:"message"`
		Delta struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"delta"`
		Usage Usage `json:"usage"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}

	switch wire.Type {
	case EventMessageStart:
		return &StreamEvent{
			Type:  EventMessageStart,
			Model: wire.Message.Model,
			Usage: wire.Message.Usage,
		}, nil
	case EventContentBlockDelta:
		return &StreamEvent{Type: EventContentBlockDelta, Text: wire.Delta.Text}, nil
	case EventMessageDelta:
		return &StreamEvent{Type: EventMessageDelta, Usage: wire.Usage}, nil
	case EventMessageStop:
		return &StreamEvent{Type: EventMessageStop}, nil
	}
	return nil, nil
}
