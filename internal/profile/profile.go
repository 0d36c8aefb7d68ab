// Package profile defines the persistent per-user record and the storage
// contract the tutoring core depends on. Implementations live in
// internal/store; all mutations are partial-field updates so concurrent
// writers never clobber each other's fields.
package profile

import (
	"context"
	"errors"
	"time"

	"github.com/vanmaster/vanmaster/internal/ai"
)

// ErrNotFound is returned by Store implementations when a requested
// record does not exist.
var ErrNotFound = errors.New("not found")

// VoiceGender selects the tutor's TTS voice and pronoun.
type VoiceGender string

const (
	VoiceMale   VoiceGender = "male"
	VoiceFemale VoiceGender = "female"
)

// Pronoun returns the Vietnamese teacher pronoun matching the voice.
func (v VoiceGender) Pronoun() string {
	if v == VoiceFemale {
		return "cô"
	}
	return "thầy"
}

// LessonStatus tracks where a lesson sits in the curriculum timeline.
type LessonStatus string

const (
	LessonNotStarted LessonStatus = "not_started"
	LessonInProgress LessonStatus = "in_progress"
	LessonCompleted  LessonStatus = "completed"
)

// LessonProgress records per-lesson teaching progress.
type LessonProgress struct {
	Status           LessonStatus `json:"status"`
	SectionsTotal    int          `json:"sectionsTotal"`
	SectionsDone     int          `json:"sectionsDone"`
	QuestionsAsked   int          `json:"questionsAsked"`
	QuestionsCorrect int          `json:"questionsCorrect"`
}

// UserProfile is the persistent per-user record. Created on first login,
// persists indefinitely. assessmentDone is the authoritative "tutoring
// unlocked" flag; isOnboarded must never be set before it.
type UserProfile struct {
	UID         string      `json:"uid"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	TargetScore *float64    `json:"targetScore"`
	VoiceGender VoiceGender `json:"voiceGender"`

	IsOnboarded     bool     `json:"isOnboarded"`
	AssessmentDone  bool     `json:"assessmentDone"`
	DiagnosticScore *float64 `json:"diagnosticScore,omitempty"`

	AvgScore        *float64 `json:"avgScore"`
	SubmissionCount int      `json:"submissionCount"`

	Weaknesses          []string                  `json:"weaknesses"`
	Strengths           []string                  `json:"strengths"`
	WeaknessCleanStreak map[string]int            `json:"weaknessCleanStreak,omitempty"`
	LessonProgress      map[string]LessonProgress `json:"lessonProgress,omitempty"`
	UserTraits          []string                  `json:"userTraits,omitempty"`

	Level    string `json:"level"`
	XP       int    `json:"xp"`
	Streak   int    `json:"streak"`
	Progress int    `json:"progress"`
}

// NewProfile returns the default profile for a first login.
func NewProfile(uid, name, email string) *UserProfile {
	if name == "" {
		name = "Bạn"
	}
	return &UserProfile{
		UID:         uid,
		Name:        name,
		Email:       email,
		VoiceGender: VoiceMale,
		Weaknesses:  []string{},
		Strengths:   []string{},
		Level:       "Tân Binh",
		XP:          0,
		Streak:      1,
		Progress:    5,
	}
}

// Submission is one persisted exam attempt.
type Submission struct {
	ID            string        `json:"id"`
	ExamID        int           `json:"examId"`
	StudentAnswer string        `json:"studentAnswer"`
	Cheating      bool          `json:"cheating"`
	Status        string        `json:"status"` // "pending", "graded"
	Grade         *ai.ExamGrade `json:"grade,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	GradedAt      *time.Time    `json:"gradedAt,omitempty"`
}

// MemoryMessage is a trimmed chat message persisted as AI memory.
type MemoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store is the persistence contract for profiles, submissions, and chat
// memory. UpdateProfile applies only the given fields, never the whole
// document.
type Store interface {
	GetProfile(ctx context.Context, uid string) (*UserProfile, error)
	CreateProfile(ctx context.Context, p *UserProfile) error
	UpdateProfile(ctx context.Context, uid string, fields map[string]any) error

	SaveSubmission(ctx context.Context, uid string, sub *Submission) (string, error)
	UpdateSubmissionGrade(ctx context.Context, uid, submissionID string, grade *ai.ExamGrade) error
	BestScores(ctx context.Context, uid string) (map[int]float64, error)

	SaveChatMemory(ctx context.Context, uid string, messages []MemoryMessage) error
	LoadChatMemory(ctx context.Context, uid string) ([]MemoryMessage, error)

	UpdateLessonProgress(ctx context.Context, uid, lessonKey string, lp LessonProgress) error
}
