package examroom

import (
	"context"
	"errors"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/vanmaster/vanmaster/internal/exam"
	"github.com/vanmaster/vanmaster/internal/router"
	"github.com/vanmaster/vanmaster/internal/screen"
	"github.com/vanmaster/vanmaster/internal/ui/components"
	"github.com/vanmaster/vanmaster/internal/ui/layout"
)

// StartMsg asks the app to open the exam room. Emitted from the chat
// flow when the student picks the mock-exam assessment.
type StartMsg struct {
	Diagnostic bool
}

type loadedMsg struct {
	Err error
}

type tickMsg time.Time

type submitDoneMsg struct {
	Err error
}

// ExamScreen runs one proctored attempt against official papers.
type ExamScreen struct {
	proctor *exam.Proctor

	answer     components.TextArea
	width      int
	height     int
	paperLine  int // scroll offset into the exam text
	warning    string
	submitting bool
}

var _ screen.Screen = (*ExamScreen)(nil)
var _ screen.KeyHintProvider = (*ExamScreen)(nil)
var _ screen.EscapeHandler = (*ExamScreen)(nil)

// New creates the exam screen around a freshly built proctor.
func New(p *exam.Proctor) *ExamScreen {
	return &ExamScreen{
		proctor: p,
		answer:  components.NewTextArea("Viết bài làm của em ở đây..."),
	}
}

func (s *ExamScreen) Init() tea.Cmd {
	return tea.Batch(s.loadCmd(), s.answer.Init())
}

func (s *ExamScreen) Title() string {
	return "Phòng thi"
}

func (s *ExamScreen) KeyHints() []layout.KeyHint {
	switch s.proctor.Status() {
	case exam.StatusReady:
		return []layout.KeyHint{
			{Key: "Enter", Description: "Bắt đầu làm bài"},
			{Key: "Esc", Description: "Quay lại"},
		}
	case exam.StatusActive:
		return []layout.KeyHint{
			{Key: "Ctrl+S", Description: "Nộp bài"},
			{Key: "PgUp/PgDn", Description: "Cuộn đề"},
		}
	case exam.StatusGraded, exam.StatusError:
		return []layout.KeyHint{
			{Key: "Enter", Description: "Về trò chuyện"},
			{Key: "N", Description: "Đề khác"},
		}
	}
	return nil
}

// HandleEscape treats leaving an active exam as a proctoring incident.
func (s *ExamScreen) HandleEscape() (bool, tea.Cmd) {
	switch s.proctor.Status() {
	case exam.StatusActive:
		if s.proctor.FullscreenExited() {
			return true, s.submitCmd()
		}
		return true, nil
	case exam.StatusSubmitting, exam.StatusGrading:
		// Grading in flight, stay put.
		return true, nil
	}
	return false, nil
}

func (s *ExamScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.resizeAnswer()
		return s, nil

	case loadedMsg:
		if msg.Err != nil {
			// The proctor already holds the student-facing message.
			return s, nil
		}
		return s, nil

	case tickMsg:
		if s.proctor.Status() != exam.StatusActive {
			return s, nil
		}
		if s.proctor.Tick() {
			return s, s.submitCmd()
		}
		return s, tickCmd()

	case tea.BlurMsg:
		if s.proctor.FullscreenExited() {
			return s, s.submitCmd()
		}
		return s, nil

	case submitDoneMsg:
		s.submitting = false
		return s, nil

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	if s.proctor.Status() == exam.StatusActive {
		var cmd tea.Cmd
		s.answer, cmd = s.answer.Update(msg)
		s.proctor.SetAnswer(s.answer.Value())
		return s, cmd
	}
	return s, nil
}

func (s *ExamScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	status := s.proctor.Status()

	switch msg.String() {
	case "enter":
		switch status {
		case exam.StatusReady:
			if err := s.proctor.Start(); err != nil {
				return s, nil
			}
			s.resizeAnswer()
			return s, tickCmd()
		case exam.StatusGraded, exam.StatusError:
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		}

	case "n", "N":
		// Retry with a fresh paper.
		if status == exam.StatusGraded || status == exam.StatusError {
			s.proctor.NewExam()
			s.answer = components.NewTextArea("Viết bài làm của em ở đây...")
			s.resizeAnswer()
			s.paperLine = 0
			s.warning = ""
			return s, tea.Batch(s.loadCmd(), s.answer.Init())
		}

	case "ctrl+s":
		if status == exam.StatusActive && !s.submitting {
			if err := s.proctor.RequestSubmit(); err != nil {
				if errors.Is(err, exam.ErrEmptyAnswer) {
					s.warning = "Bài làm đang trống, em viết gì đó trước khi nộp nhé."
				}
				return s, nil
			}
			return s, s.submitCmd()
		}
		return s, nil

	case "pgup":
		if s.paperLine > 0 {
			s.paperLine -= 5
			if s.paperLine < 0 {
				s.paperLine = 0
			}
		}
		return s, nil

	case "pgdown":
		s.paperLine += 5
		return s, nil
	}

	if status == exam.StatusActive {
		var cmd tea.Cmd
		s.answer, cmd = s.answer.Update(msg)
		s.proctor.SetAnswer(s.answer.Value())
		s.warning = ""
		return s, cmd
	}
	return s, nil
}

func (s *ExamScreen) resizeAnswer() {
	if s.width > 0 && s.height > 0 {
		s.answer.Resize(s.width-6, answerHeight(s.height))
	}
}

func (s *ExamScreen) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return loadedMsg{Err: s.proctor.Load(ctx)}
	}
}

func (s *ExamScreen) submitCmd() tea.Cmd {
	s.submitting = true
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		return submitDoneMsg{Err: s.proctor.Submit(ctx)}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
