// Package chat implements the tutoring session orchestrator: message
// history, the onboarding and diagnostic-quiz gates, directive parsing
// of AI replies, and the proactive re-engagement loop.
package chat

import (
	"github.com/vanmaster/vanmaster/internal/ai"
	"github.com/vanmaster/vanmaster/internal/llm"
	"github.com/vanmaster/vanmaster/internal/profile"
)

// Roles of a chat message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the session transcript. Append-only during a
// session; only the session mutates history, the UI just reads it.
type Message struct {
	Role    string
	Content string

	Image          string // user-attached image data URL
	GeneratedImage string // AI-generated image data URL

	Grade            *ai.ExamGrade // attached when the message reports a graded exam
	AIExam           *ai.ExamData  // attached when the reply carried an exam payload
	PracticeQuestion string        // attached when the reply carried a practice question
}

// toModelHistory converts transcript messages to LLM messages,
// skipping entries with no text.
func toModelHistory(messages []Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		role := llm.RoleUser
		if m.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

// toMemory converts transcript messages to the persisted memory form.
func toMemory(messages []Message) []profile.MemoryMessage {
	out := make([]profile.MemoryMessage, 0, len(messages))
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		out = append(out, profile.MemoryMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
