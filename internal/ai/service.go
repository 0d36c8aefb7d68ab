package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vanmaster/vanmaster/internal/llm"
	"github.com/vanmaster/vanmaster/internal/logger"
)

// chatHistoryLimit is how many trailing messages ride along as model
// context on each chat turn.
const chatHistoryLimit = 4

const genImageTag = "[GEN_IMAGE]"

// Service exposes the tutoring AI operations on top of an llm.Provider.
type Service struct {
	provider llm.Provider
	imageGen llm.ImageGenerator
	log      *logger.Logger
}

// NewService creates an AI service. imageGen may be nil, in which case
// GenerateImage fails and callers drop the image.
func NewService(provider llm.Provider, imageGen llm.ImageGenerator, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{provider: provider, imageGen: imageGen, log: log}
}

// ChatInput is one user turn of the tutoring conversation.
type ChatInput struct {
	History   []llm.Message // full conversation, trimmed internally
	Text      string
	ImageData []byte // optional photo (handwritten essay etc.)
	ImageMIME string
	Profile   ProfileContext
}

// Chat sends one tutoring turn. The reply text keeps directive tags
// except [GEN_IMAGE], whose prompt is extracted onto the reply; the
// caller resolves it in the background so the turn returns immediately.
func (s *Service) Chat(ctx context.Context, in ChatInput) (*ChatReply, error) {
	history := in.History
	if len(history) > chatHistoryLimit {
		history = history[len(history)-chatHistoryLimit:]
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: in.Text})

	req := llm.Request{
		System:    systemPrompt + profilePromptSection(in.Profile),
		Messages:  msgs,
		ImageData: in.ImageData,
		ImageMIME: in.ImageMIME,
		MaxTokens: 1024,
	}

	resp, err := s.provider.Generate(llm.WithPurpose(ctx, "chat"), req)
	if err != nil {
		return nil, fmt.Errorf("chat generation: %w", err)
	}

	reply := &ChatReply{Text: resp.Text()}

	// Extract the [GEN_IMAGE] prompt: everything after the tag up to
	// the first newline, with the tag and its tail stripped from the
	// visible text.
	if idx := strings.Index(reply.Text, genImageTag); idx >= 0 {
		tail := reply.Text[idx+len(genImageTag):]
		prompt := tail
		if nl := strings.IndexByte(tail, '\n'); nl >= 0 {
			prompt = tail[:nl]
		}
		reply.ImagePrompt = strings.TrimSpace(prompt)
		reply.Text = strings.TrimSpace(reply.Text[:idx])
	}

	return reply, nil
}

// GenerateImage produces an illustration for the given prompt.
func (s *Service) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if s.imageGen == nil {
		return "", fmt.Errorf("image generation not configured")
	}
	return s.imageGen.GenerateImage(ctx, prompt)
}

// GenerateQuiz produces the 10-question diagnostic reading quiz. A
// structurally valid response with the wrong question count is rejected.
func (s *Service) GenerateQuiz(ctx context.Context) (*QuizData, error) {
	req := llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: quizGenerationPrompt}},
		Schema:    quizSchema(),
		MaxTokens: 4096,
	}

	resp, err := s.provider.Generate(llm.WithPurpose(ctx, "quiz"), req)
	if err != nil {
		return nil, fmt.Errorf("quiz generation: %w", err)
	}

	var quiz QuizData
	if err := json.Unmarshal(resp.Content, &quiz); err != nil {
		return nil, fmt.Errorf("decoding quiz: %w", err)
	}
	if len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("quiz has no questions")
	}
	for i := range quiz.Questions {
		quiz.Questions[i].Correct = strings.ToLower(strings.TrimSpace(quiz.Questions[i].Correct))
	}
	return &quiz, nil
}

// GenerateExam produces an AI exam paper of the given type: "reading",
// "writing" or "full".
func (s *Service) GenerateExam(ctx context.Context, examType string) (*ExamData, error) {
	prompt, ok := examPrompts[examType]
	if !ok {
		return nil, fmt.Errorf("unknown exam type %q", examType)
	}

	req := llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Schema:    examSchema(),
		MaxTokens: 4096,
	}

	resp, err := s.provider.Generate(llm.WithPurpose(ctx, "exam_gen"), req)
	if err != nil {
		return nil, fmt.Errorf("exam generation: %w", err)
	}

	var exam ExamData
	if err := json.Unmarshal(resp.Content, &exam); err != nil {
		return nil, fmt.Errorf("decoding exam: %w", err)
	}
	if len(exam.Questions) == 0 {
		return nil, fmt.Errorf("exam has no questions")
	}
	return &exam, nil
}

// Grade scores a submission against the official answer key. It never
// returns a nil grade on a successful provider call: unparseable model
// output degrades to the zero-score fallback grade.
func (s *Service) Grade(ctx context.Context, examText, answerKeyText, studentAnswer string) (*ExamGrade, error) {
	prompt := gradingPrompt(examText, answerKeyText, studentAnswer, CountWords(studentAnswer))

	req := llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   8192,
		Temperature: 0.2,
	}

	resp, err := s.provider.Generate(llm.WithPurpose(ctx, "grading"), req)
	if err != nil {
		return nil, fmt.Errorf("grading: %w", err)
	}

	return ParseGrade(resp.Text()), nil
}

// Rewrite improves a draft sentence's writing style.
func (s *Service) Rewrite(ctx context.Context, text string) (string, error) {
	req := llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: rewritePrompt(text)}},
		MaxTokens: 512,
	}

	resp, err := s.provider.Generate(llm.WithPurpose(ctx, "rewrite"), req)
	if err != nil {
		return "", fmt.Errorf("rewrite: %w", err)
	}

	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", fmt.Errorf("empty rewrite result")
	}
	return out, nil
}

// Proactive produces a short nudge question from recent conversation.
func (s *Service) Proactive(ctx context.Context, history []llm.Message) (string, error) {
	var b strings.Builder
	b.WriteString(proactivePrompt)
	b.WriteString("\n\nLỊCH SỬ CHAT:\n")
	writeTranscript(&b, history, chatHistoryLimit)

	req := llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: b.String()}},
		MaxTokens: 256,
	}

	resp, err := s.provider.Generate(llm.WithPurpose(ctx, "proactive"), req)
	if err != nil {
		return "", fmt.Errorf("proactive question: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// ExtractTraits distills learning traits from recent conversation.
// Best effort: callers treat an error as "no new traits".
func (s *Service) ExtractTraits(ctx context.Context, history []llm.Message) ([]string, error) {
	var b strings.Builder
	b.WriteString(traitsPrompt)
	b.WriteString("\n\nHỘI THOẠI:\n")
	writeTranscript(&b, history, 20)

	req := llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: b.String()}},
		Schema:    traitsSchema(),
		MaxTokens: 512,
	}

	resp, err := s.provider.Generate(llm.WithPurpose(ctx, "traits"), req)
	if err != nil {
		return nil, fmt.Errorf("trait extraction: %w", err)
	}

	var out struct {
		Traits []string `json:"traits"`
	}
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("decoding traits: %w", err)
	}
	return out.Traits, nil
}

// writeTranscript renders the last limit messages as "role: content" lines.
func writeTranscript(b *strings.Builder, history []llm.Message, limit int) {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	for _, m := range history {
		fmt.Fprintf(b, "%s: %s\n", m.Role, m.Content)
	}
}
