package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// geminiModels maps friendly names to Gemini model IDs.
var geminiModels = map[string]string{
	"gemini-flash": "gemini-2.5-flash",
	"gemini-pro":   "gemini-2.5-pro",
}

// GeminiProvider implements Provider using the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  resolveModel(cfg.Model, geminiModels),
	}, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	cfg := &genai.GenerateContentConfig{}

	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		schema, err := buildGeminiSchema(req.Schema.Definition)
		if err != nil {
			return nil, fmt.Errorf("building gemini schema: %w", err)
		}
		cfg.ResponseSchema = schema
	}

	contents := buildGeminiContents(req)

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return nil, mapGeminiError(err)
	}

	text := resp.Text()
	if text == "" {
		return nil, &ErrInvalidResponse{
			Err: fmt.Errorf("empty Gemini response"),
		}
	}

	content := json.RawMessage(text)
	if req.Schema != nil {
		if err := validateResponse(req.Schema, content); err != nil {
			return nil, err
		}
	}

	out := &Response{
		Content:    content,
		Model:      p.model,
		StopReason: "end",
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		out.StopReason = "max_tokens"
		return out, &ErrMaxTokensExceeded{Content: content}
	}
	return out, nil
}

func (p *GeminiProvider) ModelID() string {
	return p.model
}

func buildGeminiContents(req Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for i, m := range req.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		parts := []*genai.Part{genai.NewPartFromText(m.Content)}
		// Inline image data rides on the final user message.
		if i == len(req.Messages)-1 && role == genai.RoleUser && len(req.ImageData) > 0 {
			mime := req.ImageMIME
			if mime == "" {
				mime = "image/jpeg"
			}
			parts = append(parts, genai.NewPartFromBytes(req.ImageData, mime))
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}

// buildGeminiSchema converts a JSON Schema definition into the genai
// schema type. Only the subset used by our prompts is supported.
func buildGeminiSchema(def map[string]any) (*genai.Schema, error) {
	schema := &genai.Schema{}

	typ, _ := def["type"].(string)
	switch typ {
	case "object":
		schema.Type = genai.TypeObject
	case "array":
		schema.Type = genai.TypeArray
	case "string":
		schema.Type = genai.TypeString
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	default:
		return nil, fmt.Errorf("unsupported schema type %q", typ)
	}

	if desc, ok := def["description"].(string); ok {
		schema.Description = desc
	}

	if props, ok := def["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			sub, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("property %q is not an object", name)
			}
			converted, err := buildGeminiSchema(sub)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			schema.Properties[name] = converted
		}
	}

	if required, ok := def["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	if items, ok := def["items"].(map[string]any); ok {
		converted, err := buildGeminiSchema(items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		schema.Items = converted
	}

	if enum, ok := def["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}

	return schema, nil
}

func mapGeminiError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return &ErrRateLimit{Err: err}
	case strings.Contains(msg, "500") || strings.Contains(msg, "503") || strings.Contains(msg, "UNAVAILABLE"):
		return &ErrProviderUnavailable{Err: err}
	}
	return &ErrProviderUnavailable{Err: err}
}
