// Package speech synthesizes Vietnamese speech for tutor replies using
// the Google Cloud Text-to-Speech REST API.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/vanmaster/vanmaster/internal/profile"
)

// MaxTTSLength caps how much of a reply gets spoken.
const MaxTTSLength = 600

const defaultEndpoint = "https://texttospeech.googleapis.com/v1/text:synthesize"

// voiceNames maps the tutor voice to a Google Cloud voice.
var voiceNames = map[profile.VoiceGender]string{
	profile.VoiceFemale: "vi-VN-Wavenet-C",
	profile.VoiceMale:   "vi-VN-Wavenet-D",
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice profile.VoiceGender) ([]byte, error)
}

// GoogleTTS implements Synthesizer against the Google Cloud TTS API.
type GoogleTTS struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewGoogleTTS creates a synthesizer. endpoint "" uses the public API.
func NewGoogleTTS(apiKey, endpoint string) (*GoogleTTS, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("tts API key is required")
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &GoogleTTS{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize returns MP3 audio bytes for the given text. Directive tags
// and markdown noise are stripped before synthesis.
func (g *GoogleTTS) Synthesize(ctx context.Context, text string, voice profile.VoiceGender) ([]byte, error) {
	clean := CleanForTTS(text)
	if clean == "" {
		return nil, fmt.Errorf("nothing to speak")
	}

	var req synthesizeRequest
	req.Input.Text = clean
	req.Voice.LanguageCode = "vi-VN"
	req.Voice.Name = voiceNames[voice]
	if req.Voice.Name == "" {
		req.Voice.Name = voiceNames[profile.VoiceMale]
	}
	req.AudioConfig.AudioEncoding = "MP3"

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode tts request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.endpoint+"?key="+g.apiKey, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts API returned %s", resp.Status)
	}

	var out synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tts response: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	return audio, nil
}

var ttsNoise = regexp.MustCompile(`\[TIMELINE\]|\[GEN_IMAGE\]|\[INFOGRAPHIC\]|\[/INFOGRAPHIC\]|\[PRACTICE\]|\[/PRACTICE\]|\[AI_EXAM\]|\[/AI_EXAM\]|[*#_\[\]()]`)

// CleanForTTS strips directive tags and markdown characters and caps
// the text at MaxTTSLength runes.
func CleanForTTS(text string) string {
	clean := ttsNoise.ReplaceAllString(text, "")
	runes := []rune(clean)
	if len(runes) > MaxTTSLength {
		clean = string(runes[:MaxTTSLength])
	}
	return clean
}

// NopSynthesizer is a Synthesizer that produces no audio. Used when no
// TTS key is configured.
type NopSynthesizer struct{}

func (NopSynthesizer) Synthesize(context.Context, string, profile.VoiceGender) ([]byte, error) {
	return nil, errors.New("chưa cấu hình giọng đọc")
}

// Recognizer captures dictated speech. Start streams recognized text
// into onText until Stop is called; stopping must not discard text
// already delivered.
type Recognizer interface {
	Start(ctx context.Context, onText func(string)) error
	Stop()
}

// NopRecognizer is a Recognizer with no capture backend.
type NopRecognizer struct{}

func (NopRecognizer) Start(context.Context, func(string)) error {
	return errors.New("chưa hỗ trợ đọc chính tả")
}

func (NopRecognizer) Stop() {}
