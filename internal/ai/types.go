package ai

import "encoding/json"

// ExamError describes one concrete problem found in a graded answer.
type ExamError struct {
	Quote      string `json:"quote"`
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion"`
}

// ExamGrade is the result of grading one submission. Immutable after creation.
type ExamGrade struct {
	Score        float64     `json:"score"`
	MaxScore     float64     `json:"maxScore"`
	Feedback     string      `json:"feedback"`
	Details      string      `json:"details"`
	Errors       []ExamError `json:"errors"`
	Improvements []string    `json:"improvements"`
	Weaknesses   []string    `json:"weaknesses"`
	Strengths    []string    `json:"strengths"`
}

// ScoreOutOf10 normalizes the grade to the 0-10 scale, rounded to 2 decimals.
func (g *ExamGrade) ScoreOutOf10() float64 {
	if g.MaxScore == 0 {
		return 0
	}
	return round2(g.Score / g.MaxScore * 10)
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// ExamQuestion is one question of an AI-generated exam.
type ExamQuestion struct {
	ID     int     `json:"id"`
	Part   string  `json:"part"` // "reading", "nlxh", "nlvh"
	Points float64 `json:"points"`
	Prompt string  `json:"prompt"`
}

// ExamData is a complete AI-generated exam paper.
type ExamData struct {
	Type            string         `json:"type"` // "reading", "writing", "full"
	Title           string         `json:"title"`
	DurationMinutes int            `json:"durationMinutes"`
	Passage         string         `json:"passage,omitempty"`
	Source          string         `json:"source,omitempty"`
	Questions       []ExamQuestion `json:"questions"`
}

// QuizQuestion is one multiple-choice question of the diagnostic quiz.
type QuizQuestion struct {
	Q       string `json:"q"`
	A       string `json:"a"`
	B       string `json:"b"`
	C       string `json:"c"`
	D       string `json:"d"`
	Correct string `json:"correct"` // "a".."d"
}

// QuizData is the AI-generated diagnostic quiz: one passage plus ten questions.
type QuizData struct {
	Passage   string         `json:"passage"`
	Source    string         `json:"source"`
	Questions []QuizQuestion `json:"questions"`
}

// ChatReply is the result of one tutoring chat round trip. Text may still
// contain directive tags; the chat session owns parsing and stripping them.
type ChatReply struct {
	Text        string
	ImagePrompt string // extracted [GEN_IMAGE] prompt, "" when the reply carried none
}

// ProfileContext is the slice of the user profile injected into chat prompts.
type ProfileContext struct {
	Name        string
	TargetScore *float64
	Weaknesses  []string
	Strengths   []string
	Traits      []string
	LessonText  string // active lesson content when in lesson-teaching mode
}

// ParseGrade decodes a grading response. Malformed JSON degrades to a
// zero-score explanatory grade rather than an error; absent arrays decode to
// empty slices, never nil.
func ParseGrade(raw string) *ExamGrade {
	start := -1
	depth := 0
	var jsonPart string
	for i, r := range raw {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				jsonPart = raw[start : i+1]
			}
		}
	}

	if jsonPart != "" {
		var g ExamGrade
		if err := json.Unmarshal([]byte(jsonPart), &g); err == nil {
			if g.Errors == nil {
				g.Errors = []ExamError{}
			}
			if g.Improvements == nil {
				g.Improvements = []string{}
			}
			if g.Weaknesses == nil {
				g.Weaknesses = []string{}
			}
			if g.Strengths == nil {
				g.Strengths = []string{}
			}
			return &g
		}
	}

	return &ExamGrade{
		Score:        0,
		MaxScore:     10,
		Feedback:     raw,
		Details:      "Không thể phân tích kết quả chi tiết.",
		Errors:       []ExamError{},
		Improvements: []string{},
		Weaknesses:   []string{"lỗi phân tích"},
		Strengths:    []string{},
	}
}
