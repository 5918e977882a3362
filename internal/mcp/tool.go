package mcp

import "encoding/json"

// ToolDescriptor is a tool as described by tools/list.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Title       string          `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Tool is a tool exposed by the server.
//
// HasDescription distinguishes a description the server omitted from one
// it sent as an empty string.
type Tool struct {
	Name           string
	Description    string
	HasDescription bool
	InputSchema    json.RawMessage
}

// ToolFromDescriptor converts a wire descriptor into a Tool, preserving the
// description exactly as received.
func ToolFromDescriptor(d ToolDescriptor) Tool {
	tool := Tool{
		Name:        d.Name,
		InputSchema: d.InputSchema,
	}

	if d.Description != nil {
		tool.Description = *d.Description
		tool.HasDescription = true
	}

	return tool
}

// FindTool returns the tool with the given name.
func FindTool(tools []Tool, name string) (Tool, bool) {
	for _, tool := range tools {
		if tool.Name == name {
			return tool, true
		}
	}

	return Tool{}, false
}

type listToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type listToolsResult struct {
	Tools      []ToolDescriptor `json:"tools"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

type callToolParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}
