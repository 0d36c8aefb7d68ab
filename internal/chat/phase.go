package chat

// Phase is the session's single dispatch state. Exactly one phase is
// active at a time, so conflicting gates are unrepresentable.
type Phase int

const (
	// PhaseAwaitingScore gates input until a valid target score (5-10)
	// is captured.
	PhaseAwaitingScore Phase = iota
	// PhaseAwaitingTestChoice gates input until the student picks the
	// assessment method: A (mock exam) or B (diagnostic quiz).
	PhaseAwaitingTestChoice
	// PhaseQuizReading shows the quiz passage and waits for a start cue.
	PhaseQuizReading
	// PhaseQuizQuestioning runs the question-by-question quiz loop.
	PhaseQuizQuestioning
	// PhaseAwaitingExamType waits for an A/B/C generated-exam type pick.
	PhaseAwaitingExamType
	// PhaseAwaitingGraphicTopic captures the topic for a requested
	// illustration.
	PhaseAwaitingGraphicTopic
	// PhaseAwaitingLessonChoice waits for a curriculum lesson pick.
	PhaseAwaitingLessonChoice
	// PhaseTutoring is the unlocked free-form tutoring conversation.
	PhaseTutoring
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingScore:
		return "awaiting_score"
	case PhaseAwaitingTestChoice:
		return "awaiting_test_choice"
	case PhaseQuizReading:
		return "quiz_reading"
	case PhaseQuizQuestioning:
		return "quiz_questioning"
	case PhaseAwaitingExamType:
		return "awaiting_exam_type"
	case PhaseAwaitingGraphicTopic:
		return "awaiting_graphic_topic"
	case PhaseAwaitingLessonChoice:
		return "awaiting_lesson_choice"
	case PhaseTutoring:
		return "tutoring"
	}
	return "unknown"
}
