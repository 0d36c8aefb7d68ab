package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// ImageGenerator produces illustration images from text prompts.
// Results are returned as data URLs ready for storage or display.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// ImagenGenerator implements ImageGenerator using the Imagen API.
type ImagenGenerator struct {
	client *genai.Client
	model  string
}

// NewImagenGenerator creates an image generator backed by Imagen.
// It reuses the Gemini API key.
func NewImagenGenerator(ctx context.Context, cfg GeminiConfig) (*ImagenGenerator, error) {
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

	model := cfg.ImageModel
	if model == "" {
		model = "imagen-3.0-generate-002"
	}

	return &ImagenGenerator{client: client, model: model}, nil
}

func (g *ImagenGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return "", mapGeminiError(err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return "", &ErrInvalidResponse{Err: fmt.Errorf("no image in Imagen response")}
	}

	img := resp.GeneratedImages[0].Image
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	encoded := base64.StdEncoding.EncodeToString(img.ImageBytes)
	return fmt.Sprintf("data:%s;base64,%s", mime, encoded), nil
}

// MockImageGenerator is an ImageGenerator for tests. It returns a
// fixed data URL and records prompts.
type MockImageGenerator struct {
	mu      sync.Mutex
	Result  string
	Err     error
	Prompts []string
}

// NewMockImageGenerator creates a mock returning a tiny placeholder image.
func NewMockImageGenerator() *MockImageGenerator {
	return &MockImageGenerator{Result: "data:image/png;base64,aWxsdXN0cmF0aW9u"}
}

func (g *MockImageGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Prompts = append(g.Prompts, prompt)
	if g.Err != nil {
		return "", g.Err
	}
	return g.Result, nil
}
