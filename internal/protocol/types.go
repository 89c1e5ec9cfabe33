// Package protocol implements the newline-delimited JSON request loop
// the server speaks over its standard streams. Each request line yields
// exactly one response line, in order.
package protocol

import "deploypilot/internal/tools"

// Request type constants.
const (
	TypeInitialize  = "initialize"
	TypeListTools   = "list_tools"
	TypeExecuteTool = "execute_tool"
)

// Response type constants.
const (
	TypeInitializeResult  = "initialize_result"
	TypeListToolsResult   = "list_tools_result"
	TypeExecuteToolResult = "execute_tool_result"
	TypeError             = "error"
)

// ProtocolVersion is the wire revision this server implements.
const ProtocolVersion = "0.1.0"

// Request is one inbound line.
type Request struct {
	Type      string         `json:"type"`
	Name      string         `json:"name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Response is one outbound line. Exactly the fields relevant to the
// response type are populated; the rest are omitted.
type Response struct {
	Type              string          `json:"type"`
	SupportedVersions []string        `json:"supportedVersions,omitempty"`
	Tools             []tools.Summary `json:"tools,omitempty"`
	Content           string          `json:"content,omitempty"`
	Message           string          `json:"message,omitempty"`
}
