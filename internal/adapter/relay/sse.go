package relay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"

	"github.com/thushan/porter/internal/core/domain"
)

const (
	sseDataPrefix = "data:"
	sseDoneMarker = "[DONE]"
)

// streamChunk is the subset of an OpenAI-compatible streaming frame we
// care about. LM Studio, llama.cpp server and vLLM all speak this shape.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *domain.TokenUsage `json:"usage"`
}

// DecodeSSE reassembles the assistant's text from an OpenAI-style
// event stream and picks up the final usage object when the upstream
// includes one (most local servers only send it on the last frame, and
// only when asked). Anything that doesn't look like an SSE stream is
// returned verbatim so a non-streaming or failed response still gets
// persisted as whatever the upstream actually sent.
func DecodeSSE(raw []byte) (string, domain.TokenUsage) {
	if !bytes.Contains(raw, []byte(sseDataPrefix)) {
		return string(raw), domain.TokenUsage{}
	}

	var content strings.Builder
	var usage domain.TokenUsage

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, sseDataPrefix) {
			continue
		}

		payload := strings.TrimSpace(line[len(sseDataPrefix):])
		if payload == "" || payload == sseDoneMarker {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// partial frame at the end of an aborted stream - skip it
			continue
		}

		for _, choice := range chunk.Choices {
			content.WriteString(choice.Delta.Content)
		}

		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
	}

	return content.String(), usage
}
