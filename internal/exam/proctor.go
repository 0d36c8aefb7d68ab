package exam

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/vanmaster/vanmaster/internal/ai"
	"github.com/vanmaster/vanmaster/internal/insights"
	"github.com/vanmaster/vanmaster/internal/logger"
	"github.com/vanmaster/vanmaster/internal/profile"
)

// Status is the exam session state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusLoading    Status = "loading"
	StatusReady      Status = "ready"
	StatusActive     Status = "active"
	StatusSubmitting Status = "submitting"
	StatusGrading    Status = "grading"
	StatusGraded     Status = "graded"
	StatusError      Status = "error"
)

// DurationSeconds is the proctored exam length: 120 minutes.
const DurationSeconds = 120 * 60

const cheatingPrefix = "[GIAN LẬN] "

// ErrEmptyAnswer rejects a deliberate submission with no answer text.
var ErrEmptyAnswer = errors.New("bài làm trống")

// Grader scores a submission against the official answer key.
type Grader interface {
	Grade(ctx context.Context, examText, answerKeyText, studentAnswer string) (*ai.ExamGrade, error)
}

// Extractor converts a document file to plain text.
type Extractor func(path string) (string, error)

// Config wires a Proctor's collaborators.
type Config struct {
	UID     string
	Store   profile.Store
	Grader  Grader
	Catalog *Catalog
	Extract Extractor

	// Diagnostic marks this attempt as the one-time baseline
	// assessment: grading also unlocks tutoring.
	Diagnostic bool

	// EnterFullscreen is best effort: a denial does not stop the exam.
	EnterFullscreen func() error
	ExitFullscreen  func()

	// OnGraded hands the grade back to the chat session together with
	// weaknesses resolved by this submission.
	OnGraded func(grade *ai.ExamGrade, resolvedWeaknesses []string)

	Log *logger.Logger
}

// Proctor runs one timed, fullscreen, anti-cheat exam attempt.
//
//	idle → loading → ready → active → {submitting|error} → grading → graded
type Proctor struct {
	cfg Config

	mu       sync.Mutex
	status   Status
	examID   int
	examText string
	timeLeft int
	cheating bool
	answer   string
	errMsg   string
	grade    *ai.ExamGrade
}

// NewProctor creates an idle proctor. Call Load to pick and fetch a paper.
func NewProctor(cfg Config) *Proctor {
	if cfg.Log == nil {
		cfg.Log = logger.Default()
	}
	return &Proctor{cfg: cfg, status: StatusIdle, timeLeft: DurationSeconds}
}

func (p *Proctor) Status() Status { p.mu.Lock(); defer p.mu.Unlock(); return p.status }
func (p *Proctor) ExamID() int    { p.mu.Lock(); defer p.mu.Unlock(); return p.examID }
func (p *Proctor) TimeLeft() int  { p.mu.Lock(); defer p.mu.Unlock(); return p.timeLeft }
func (p *Proctor) Cheating() bool { p.mu.Lock(); defer p.mu.Unlock(); return p.cheating }
func (p *Proctor) Answer() string { p.mu.Lock(); defer p.mu.Unlock(); return p.answer }
func (p *Proctor) ErrMsg() string { p.mu.Lock(); defer p.mu.Unlock(); return p.errMsg }

func (p *Proctor) ExamText() string { p.mu.Lock(); defer p.mu.Unlock(); return p.examText }

// Grade returns the grading result once status is graded, nil before.
func (p *Proctor) Grade() *ai.ExamGrade { p.mu.Lock(); defer p.mu.Unlock(); return p.grade }

// SetAnswer replaces the answer text.
func (p *Proctor) SetAnswer(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answer = text
}

// AppendAnswer adds dictated text to the answer without erasing what
// is already written.
func (p *Proctor) AppendAnswer(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answer += text
}

// Load picks an exam (preferring papers without a prior graded attempt)
// and extracts its text. A missing paper lands in the error state with
// a message naming the expected file path.
func (p *Proctor) Load(ctx context.Context) error {
	p.mu.Lock()
	p.status = StatusLoading
	p.answer = ""
	p.cheating = false
	p.grade = nil
	p.errMsg = ""
	p.timeLeft = DurationSeconds

	if p.examID == 0 {
		seen := map[int]float64{}
		if best, err := p.cfg.Store.BestScores(ctx, p.cfg.UID); err == nil {
			seen = best
		}
		p.examID = p.cfg.Catalog.PickPreferUnseen(seen)
	}
	id := p.examID
	p.mu.Unlock()

	text, err := p.cfg.Extract(p.cfg.Catalog.ExamPath(id))

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.status = StatusError
		p.errMsg = fmt.Sprintf("Không thể tải đề thi. Đặt file vào: %s", p.cfg.Catalog.ExamPath(id))
		return fmt.Errorf("load exam %d: %w", id, err)
	}
	p.examText = text
	p.status = StatusReady
	return nil
}

// Start begins the attempt: best-effort fullscreen, then the countdown.
func (p *Proctor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusReady {
		return fmt.Errorf("cannot start from status %s", p.status)
	}

	if p.cfg.EnterFullscreen != nil {
		if err := p.cfg.EnterFullscreen(); err != nil {
			// Denied fullscreen is not fatal.
			p.cfg.Log.Warn("fullscreen request denied", "err", err)
		}
	}

	p.timeLeft = DurationSeconds
	p.status = StatusActive
	return nil
}

// Tick advances the countdown by one second. It returns true exactly
// once, when the timer hits zero and the attempt moves to submitting;
// the caller must then run Submit.
func (p *Proctor) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusActive {
		return false
	}
	p.timeLeft--
	if p.timeLeft > 0 {
		return false
	}
	p.timeLeft = 0
	p.status = StatusSubmitting
	return true
}

// FullscreenExited is the anti-cheat signal. During an active attempt
// it flags cheating and forces submission; the caller must then run
// Submit. Outside active it is a no-op.
func (p *Proctor) FullscreenExited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusActive {
		return false
	}
	p.cheating = true
	p.status = StatusSubmitting
	return true
}

// RequestSubmit is the student's own submit action. An empty answer is
// rejected back to active; forced submissions (timer, cheating) never
// come through here.
func (p *Proctor) RequestSubmit() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusActive {
		return fmt.Errorf("cannot submit from status %s", p.status)
	}
	if !p.cheating && strings.TrimSpace(p.answer) == "" {
		return ErrEmptyAnswer
	}
	p.status = StatusSubmitting
	return nil
}

// Submit runs the submission pipeline: persist the raw attempt, fetch
// exam and answer-key text (each degrading to a placeholder), grade,
// persist the grade, fold it into the profile, and finalize the
// diagnostic gate when applicable. Callable once the attempt is in the
// submitting state.
func (p *Proctor) Submit(ctx context.Context) error {
	p.mu.Lock()
	if p.status != StatusSubmitting {
		p.mu.Unlock()
		return fmt.Errorf("cannot grade from status %s", p.status)
	}
	examID := p.examID
	answer := p.answer
	cheating := p.cheating
	p.status = StatusGrading
	p.mu.Unlock()

	if p.cfg.ExitFullscreen != nil {
		p.cfg.ExitFullscreen()
	}

	grade, err := p.runGrading(ctx, examID, answer, cheating)

	p.mu.Lock()
	if err != nil {
		p.status = StatusError
		p.errMsg = "Có lỗi khi nộp bài. Vui lòng thử lại."
		p.mu.Unlock()
		return err
	}
	p.grade = grade.grade
	p.status = StatusGraded
	p.mu.Unlock()

	if p.cfg.OnGraded != nil {
		p.cfg.OnGraded(grade.grade, grade.resolved)
	}
	return nil
}

type gradingResult struct {
	grade    *ai.ExamGrade
	resolved []string
}

func (p *Proctor) runGrading(ctx context.Context, examID int, answer string, cheating bool) (*gradingResult, error) {
	stored := answer
	if cheating {
		stored = cheatingPrefix + answer
	}

	subID, err := p.cfg.Store.SaveSubmission(ctx, p.cfg.UID, &profile.Submission{
		ExamID:        examID,
		StudentAnswer: stored,
		Cheating:      cheating,
		Status:        "pending",
	})
	if err != nil {
		return nil, fmt.Errorf("save submission: %w", err)
	}

	// Both document fetches degrade independently: a missing grading
	// guide must not block the student from seeing a score.
	examText, err := p.cfg.Extract(p.cfg.Catalog.ExamPath(examID))
	if err != nil {
		examText = "Không thể đọc đề thi"
	}
	keyText, err := p.cfg.Extract(p.cfg.Catalog.KeyPath(examID))
	if err != nil {
		keyText = "Không có hướng dẫn chấm"
	}

	gradedAnswer := answer
	if strings.TrimSpace(gradedAnswer) == "" {
		gradedAnswer = "(Bỏ trống)"
	}

	grade, err := p.cfg.Grader.Grade(ctx, examText, keyText, gradedAnswer)
	if err != nil {
		return nil, fmt.Errorf("grade submission: %w", err)
	}

	if err := p.cfg.Store.UpdateSubmissionGrade(ctx, p.cfg.UID, subID, grade); err != nil {
		return nil, fmt.Errorf("persist grade: %w", err)
	}

	resolved, err := p.applyInsights(ctx, grade)
	if err != nil {
		return nil, err
	}

	if p.cfg.Diagnostic {
		diagScore := round1(grade.ScoreOutOf10())
		// assessmentDone, isOnboarded and the diagnostic score land in
		// one update so the gate is never observed half-open.
		err := p.cfg.Store.UpdateProfile(ctx, p.cfg.UID, map[string]any{
			"assessmentDone":  true,
			"isOnboarded":     true,
			"diagnosticScore": diagScore,
		})
		if err != nil {
			return nil, fmt.Errorf("finalize assessment: %w", err)
		}
	}

	return &gradingResult{grade: grade, resolved: resolved}, nil
}

func (p *Proctor) applyInsights(ctx context.Context, grade *ai.ExamGrade) ([]string, error) {
	prof, err := p.cfg.Store.GetProfile(ctx, p.cfg.UID)
	if err != nil {
		return nil, fmt.Errorf("load profile for insights: %w", err)
	}

	result := insights.MergeInsights(grade, prof)

	// A graded submission earns XP scaled by the raw score.
	xp := prof.XP + int(math.Round(grade.Score*20))

	err = p.cfg.Store.UpdateProfile(ctx, p.cfg.UID, map[string]any{
		"weaknesses":          result.MergedWeaknesses,
		"strengths":           result.MergedStrengths,
		"weaknessCleanStreak": result.CleanStreak,
		"avgScore":            result.NewAvg,
		"submissionCount":     result.NewCount,
		"xp":                  xp,
	})
	if err != nil {
		return nil, fmt.Errorf("persist insights: %w", err)
	}
	return result.ResolvedWeaknesses, nil
}

// NewExam abandons the current attempt and resets so Load picks a
// fresh paper. Stops the countdown implicitly via the status change.
func (p *Proctor) NewExam() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.ExitFullscreen != nil && (p.status == StatusActive || p.status == StatusReady) {
		p.cfg.ExitFullscreen()
	}

	p.status = StatusIdle
	p.examID = 0
	p.examText = ""
	p.answer = ""
	p.cheating = false
	p.grade = nil
	p.errMsg = ""
	p.timeLeft = DurationSeconds
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
