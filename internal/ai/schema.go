package ai

import "github.com/vanmaster/vanmaster/internal/llm"

// quizSchema constrains the diagnostic quiz to the wire shape the quiz
// engine consumes.
func quizSchema() *llm.Schema {
	question := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"q":       map[string]any{"type": "string"},
			"a":       map[string]any{"type": "string"},
			"b":       map[string]any{"type": "string"},
			"c":       map[string]any{"type": "string"},
			"d":       map[string]any{"type": "string"},
			"correct": map[string]any{"type": "string", "enum": []any{"a", "b", "c", "d"}},
		},
		"required": []any{"q", "a", "b", "c", "d", "correct"},
	}
	return &llm.Schema{
		Name:        "diagnostic-quiz",
		Description: "Multiple choice reading comprehension quiz",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"passage":   map[string]any{"type": "string"},
				"source":    map[string]any{"type": "string"},
				"questions": map[string]any{"type": "array", "items": question},
			},
			"required": []any{"passage", "source", "questions"},
		},
	}
}

func examSchema() *llm.Schema {
	question := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":     map[string]any{"type": "integer"},
			"part":   map[string]any{"type": "string", "enum": []any{"reading", "nlxh", "nlvh"}},
			"points": map[string]any{"type": "number"},
			"prompt": map[string]any{"type": "string"},
		},
		"required": []any{"id", "part", "points", "prompt"},
	}
	return &llm.Schema{
		Name:        "generated-exam",
		Description: "A generated THPT literature exam",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type":            map[string]any{"type": "string", "enum": []any{"reading", "writing", "full"}},
				"title":           map[string]any{"type": "string"},
				"durationMinutes": map[string]any{"type": "integer"},
				"passage":         map[string]any{"type": "string"},
				"source":          map[string]any{"type": "string"},
				"questions":       map[string]any{"type": "array", "items": question},
			},
			"required": []any{"type", "title", "durationMinutes", "questions"},
		},
	}
}

func traitsSchema() *llm.Schema {
	return &llm.Schema{
		Name:        "learning-traits",
		Description: "Observed learning traits of the student",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"traits": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"required": []any{"traits"},
		},
	}
}
