package chat

import (
	"encoding/json"
	"strings"

	"github.com/vanmaster/vanmaster/internal/ai"
)

// DirectiveKind identifies a structured marker embedded in an AI reply.
type DirectiveKind int

const (
	// DirectiveInfographic asks for an infographic about a named work.
	DirectiveInfographic DirectiveKind = iota
	// DirectiveExam carries a generated exam payload.
	DirectiveExam
	// DirectivePractice carries a practice question.
	DirectivePractice
	// DirectiveSectionDone marks one lesson section as taught.
	DirectiveSectionDone
	// DirectiveQuestionAsked marks a lesson check question asked.
	DirectiveQuestionAsked
	// DirectiveQuestionCorrect marks a lesson check question answered
	// correctly.
	DirectiveQuestionCorrect
	// DirectiveLessonComplete exits lesson-teaching mode.
	DirectiveLessonComplete
)

// Directive is one parsed marker with its payload, if any.
type Directive struct {
	Kind    DirectiveKind
	Payload string       // work name, practice question text
	Exam    *ai.ExamData // set for DirectiveExam
}

// pairedTags are block markers with an open and close tag.
var pairedTags = []struct {
	open, close string
	kind        DirectiveKind
}{
	{"[INFOGRAPHIC]", "[/INFOGRAPHIC]", DirectiveInfographic},
	{"[AI_EXAM]", "[/AI_EXAM]", DirectiveExam},
	{"[PRACTICE]", "[/PRACTICE]", DirectivePractice},
}

// bareTags are standalone lesson-progress markers.
var bareTags = []struct {
	tag  string
	kind DirectiveKind
}{
	{"[SECTION_DONE]", DirectiveSectionDone},
	{"[QUESTION_ASKED]", DirectiveQuestionAsked},
	{"[QUESTION_CORRECT]", DirectiveQuestionCorrect},
	{"[LESSON_COMPLETE]", DirectiveLessonComplete},
}

// ParseDirectives scans an AI reply, strips every recognized tag, and
// returns the cleaned display text plus the extracted directives.
// Malformed exam payloads are dropped silently, the surrounding text
// still displays.
func ParseDirectives(text string) (string, []Directive) {
	var directives []Directive

	for _, t := range pairedTags {
		for {
			start := strings.Index(text, t.open)
			if start < 0 {
				break
			}
			rest := text[start+len(t.open):]
			end := strings.Index(rest, t.close)
			if end < 0 {
				// Unterminated tag: drop the marker, keep the tail.
				text = text[:start] + rest
				break
			}
			payload := strings.TrimSpace(rest[:end])
			text = text[:start] + rest[end+len(t.close):]

			d := Directive{Kind: t.kind, Payload: payload}
			if t.kind == DirectiveExam {
				var exam ai.ExamData
				if err := json.Unmarshal([]byte(payload), &exam); err != nil || len(exam.Questions) == 0 {
					continue
				}
				d.Exam = &exam
				d.Payload = ""
			}
			directives = append(directives, d)
		}
	}

	for _, t := range bareTags {
		for strings.Contains(text, t.tag) {
			text = strings.Replace(text, t.tag, "", 1)
			directives = append(directives, Directive{Kind: t.kind})
		}
	}

	return strings.TrimSpace(text), directives
}
