package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"stockbridge/internal/toolbox"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerTools exposes every registered toolbox definition as an MCP tool.
// Calls run through the dispatcher, so the caller always receives the uniform
// response envelope as JSON text, with IsError mirroring the envelope status.
func registerTools(server *sdkmcp.Server, dispatcher *toolbox.Dispatcher, defs []*toolbox.Definition) {
	for _, def := range defs {
		server.AddTool(&sdkmcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: paramSchema(def.Params),
		}, dispatchHandler(dispatcher, def.Name))
	}
}

func dispatchHandler(dispatcher *toolbox.Dispatcher, tool string) sdkmcp.ToolHandler {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		params := map[string]any{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
		}

		resp := dispatcher.Dispatch(ctx, toolbox.Request{Tool: tool, Params: params})
		body, err := json.Marshal(resp)
		if err != nil {
			return nil, err
		}
		return &sdkmcp.CallToolResult{
			Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(body)}},
			IsError: resp.Status == toolbox.StatusError,
		}, nil
	}
}

func paramSchema(params []toolbox.Param) json.RawMessage {
	properties := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		properties[p.Name] = schemaProperty(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	body, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return body
}

func schemaProperty(p toolbox.Param) map[string]any {
	prop := map[string]any{}
	switch p.Type {
	case toolbox.TypeStringList:
		prop["anyOf"] = []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		}
	case toolbox.TypeDate:
		prop["type"] = "string"
		prop["format"] = "date"
	case toolbox.TypeInt:
		prop["type"] = "integer"
		prop["minimum"] = 0
	default:
		prop["type"] = "string"
	}
	if p.Description != "" {
		prop["description"] = p.Description
	}
	return prop
}
