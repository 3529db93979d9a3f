package mcp

import (
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// SuccessResult encodes v as a JSON object with success:true.
func SuccessResult(v interface{}) (ToolResult, error) {
	out := map[string]interface{}{}
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return ToolResult{}, fmt.Errorf("failed to marshal result: %w", err)
		}
		if err := json.Unmarshal(b, &out); err != nil {
			return ToolResult{}, fmt.Errorf("failed to flatten result: %w", err)
		}
	}
	out["success"] = true
	return textResult(out, false)
}

// ErrorResult encodes err as {"success": false, "error": ...} with IsError set.
func ErrorResult(err error) ToolResult {
	res, marshalErr := textResult(map[string]interface{}{"success": false, "error": err.Error()}, true)
	if marshalErr != nil {
		return ToolResult{IsError: true, Content: []ContentItem{{Type: "text", Text: err.Error()}}}
	}
	return res
}

func textResult(v interface{}, isError bool) (ToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return ToolResult{}, fmt.Errorf("failed to marshal result: %w", err)
	}
	return ToolResult{
		Content: []ContentItem{{Type: "text", Text: string(b)}},
		IsError: isError,
	}, nil
}

// DecodeResult unmarshals the JSON text of a tool result into v.
func DecodeResult(result ToolResult, v interface{}) error {
	text := result.Text()
	if text == "" {
		return fmt.Errorf("empty tool result")
	}
	return json.Unmarshal([]byte(text), v)
}

// toSDKResult converts a ToolResult to the SDK result type.
func toSDKResult(result ToolResult) *mcpsdk.CallToolResult {
	content := make([]mcpsdk.Content, len(result.Content))
	for i, item := range result.Content {
		content[i] = &mcpsdk.TextContent{Text: item.Text}
	}
	return &mcpsdk.CallToolResult{Content: content, IsError: result.IsError}
}

// fromSDKResult keeps the text items of an SDK result.
func fromSDKResult(result *mcpsdk.CallToolResult) ToolResult {
	content := make([]ContentItem, 0, len(result.Content))
	for _, item := range result.Content {
		if text, ok := item.(*mcpsdk.TextContent); ok {
			content = append(content, ContentItem{Type: "text", Text: text.Text})
		}
	}
	return ToolResult{Content: content, IsError: result.IsError}
}
