package llm

import (
	"context"
	"encoding/json"
)

// Provider is the core abstraction for LLM interaction. Consumers call
// Generate with a Request and receive text or schema-validated JSON.
type Provider interface {
	// Generate sends a prompt to the LLM and returns the response. When the
	// request carries a Schema, the provider uses its native structured
	// output mechanism and Content is the validated JSON.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// System is the system prompt. Sets the tutor's role and constraints.
	System string

	// Messages is the conversation history, oldest first.
	Messages []Message

	// ImageData is an optional inline image attached to the final user
	// message (a photo of a handwritten essay, for instance). Only the
	// Gemini provider consumes it; the others ignore image input.
	ImageData []byte

	// ImageMIME is the MIME type of ImageData. Defaults to image/png.
	ImageMIME string

	// Schema is the JSON Schema the response must conform to. When nil the
	// response Content is raw text wrapped as json.RawMessage.
	Schema *Schema

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0. Default 0.0.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the LLM.
type Schema struct {
	// Name identifies this schema (tool name for Anthropic, schema name for
	// OpenAI). Kebab-case, e.g. "diagnostic-quiz".
	Name string

	// Description is sent to the LLM to guide generation.
	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the LLM's output.
type Response struct {
	// Content is the generated output. With a Schema this is the validated
	// JSON object; without, the raw text response.
	Content json.RawMessage

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason is normalized to: "end", "max_tokens", "error".
	StopReason string
}

// Text returns the response content as a plain string.
func (r *Response) Text() string {
	return string(r.Content)
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
