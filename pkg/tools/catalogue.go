package tools

import (
	"encoding/json"

	"github.com/sashabaranov/go-openai"
)

// Names lists the catalogue in the order it is offered to the model.
var Names = []string{NameSearch, NameTextSearch, NameRead, NameReport}

// emptyParameters is sent because the client always serializes the field.
// Argument documentation lives in the system prompt.
var emptyParameters = json.RawMessage(`{"type":"object"}`)

// Catalogue returns the tool definitions sent with every chat request.
func Catalogue() []openai.Tool {
	out := make([]openai.Tool, 0, len(Names))
	for _, name := range Names {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:       name,
				Parameters: emptyParameters,
			},
		})
	}
	return out
}

// IsReport reports whether call terminates the session.
func IsReport(call openai.ToolCall) bool {
	return call.Function.Name == NameReport
}
