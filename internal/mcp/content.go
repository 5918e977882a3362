package mcp

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ContentBlock is one entry of a tool result's content array.
type ContentBlock struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Data     string          `json:"data,omitempty"`
	MIMEType string          `json:"mimeType,omitempty"`
	URI      string          `json:"uri,omitempty"`
	Name     string          `json:"name,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// DecodeContent extracts the content blocks of a tool result.
//
// The second return value reports whether raw is an object with a content
// key. A content value that is not an array yields no blocks. Array entries
// that are not objects are skipped.
func DecodeContent(raw json.RawMessage) ([]ContentBlock, bool) {
	var result map[string]json.RawMessage
	if err := json.Unmarshal(raw, &result); err != nil || result == nil {
		return nil, false
	}

	content, ok := result["content"]
	if !ok {
		return nil, false
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, true
	}

	blocks := make([]ContentBlock, 0, len(entries))

	for _, entry := range entries {
		var block ContentBlock
		if err := json.Unmarshal(entry, &block); err != nil {
			continue
		}

		blocks = append(blocks, block)
	}

	return blocks, true
}

// RenderText renders a tool result for a terminal.
//
// When the result carries content, every text block with non-empty text is
// emitted on its own line and other blocks are ignored. Any other result is
// emitted verbatim as JSON.
func RenderText(raw json.RawMessage) string {
	blocks, ok := DecodeContent(raw)
	if !ok {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 {
			return ""
		}

		return string(trimmed) + "\n"
	}

	var sb strings.Builder

	for _, block := range blocks {
		if block.Type == "text" && block.Text != "" {
			sb.WriteString(block.Text)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// IsErrorResult reports whether a tool result sets isError.
func IsErrorResult(raw json.RawMessage) bool {
	var result struct {
		IsError bool `json:"isError"`
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return false
	}

	return result.IsError
}
