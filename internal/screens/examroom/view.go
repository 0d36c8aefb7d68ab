package examroom

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/vanmaster/vanmaster/internal/ai"
	"github.com/vanmaster/vanmaster/internal/exam"
	"github.com/vanmaster/vanmaster/internal/ui/theme"
)

func (s *ExamScreen) View(width, height int) string {
	switch s.proctor.Status() {
	case exam.StatusIdle, exam.StatusLoading:
		return centered(width, "Đang tải đề thi...")
	case exam.StatusError:
		return centered(width, theme.Incorrect.Render(s.proctor.ErrMsg()))
	case exam.StatusReady:
		return s.renderReady(width, height)
	case exam.StatusActive:
		return s.renderActive(width, height)
	case exam.StatusSubmitting, exam.StatusGrading:
		return centered(width, "Đang nộp và chấm bài, em chờ chút nhé...")
	case exam.StatusGraded:
		return s.renderGraded(width, height)
	}
	return ""
}

func centered(width int, text string) string {
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.Text).
		Render("\n\n" + text)
}

func (s *ExamScreen) renderReady(width, height int) string {
	var b strings.Builder
	b.WriteString(theme.Title.Width(width).Render(fmt.Sprintf("ĐỀ THI SỐ %d — 120 PHÚT", s.proctor.ExamID())))
	b.WriteString("\n\n")
	b.WriteString(theme.Hint.Width(width).Align(lipgloss.Center).Render(
		"Khi bấm Enter, thời gian bắt đầu chạy. Rời khỏi cửa sổ trong lúc làm bài\nsẽ bị tính là gian lận và bài tự động nộp."))
	b.WriteString("\n\n")
	b.WriteString(s.renderPaper(width, height-8))
	return b.String()
}

func (s *ExamScreen) renderActive(width, height int) string {
	timeLeft := s.proctor.TimeLeft()
	mins := timeLeft / 60
	secs := timeLeft % 60
	timerStyle := theme.Body
	if timeLeft <= 300 {
		timerStyle = theme.Incorrect
	}

	words := ai.CountWords(s.proctor.Answer())

	header := theme.Warning.Render(fmt.Sprintf("  Đề %d", s.proctor.ExamID())) +
		"   " + timerStyle.Render(fmt.Sprintf("⏱ %02d:%02d", mins, secs)) +
		"   " + theme.Hint.Render(fmt.Sprintf("%d chữ", words))
	if s.proctor.Cheating() {
		header += "   " + theme.Incorrect.Render("⚠ GIAN LẬN")
	}

	paperHeight := height - answerHeight(height) - 4
	if paperHeight < 3 {
		paperHeight = 3
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", max(width-4, 0))))
	b.WriteString("\n")
	b.WriteString(s.renderPaperWindow(width, paperHeight))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", max(width-4, 0))))
	b.WriteString("\n")
	b.WriteString(s.answer.View())
	if s.warning != "" {
		b.WriteString("\n" + theme.Warning.Render("  "+s.warning))
	}
	return b.String()
}

func (s *ExamScreen) renderGraded(width, _ int) string {
	grade := s.proctor.Grade()
	if grade == nil {
		return centered(width, "Đã nộp bài.")
	}

	var b strings.Builder
	b.WriteString(theme.Title.Width(width).Render(fmt.Sprintf("KẾT QUẢ: %.4g/10", grade.ScoreOutOf10())))
	b.WriteString("\n\n")
	wrap := lipgloss.NewStyle().Width(max(width-8, 20)).Foreground(theme.Text)
	b.WriteString(wrap.Render("  " + grade.Feedback))
	if len(grade.Weaknesses) > 0 {
		b.WriteString("\n\n" + theme.Warning.Render("  Cần cải thiện: ") +
			theme.Body.Render(strings.Join(grade.Weaknesses, ", ")))
	}
	if len(grade.Strengths) > 0 {
		b.WriteString("\n" + theme.Correct.Render("  Điểm mạnh: ") +
			theme.Body.Render(strings.Join(grade.Strengths, ", ")))
	}
	b.WriteString("\n\n" + theme.Hint.Width(width).Align(lipgloss.Center).Render("Enter để về trò chuyện, N để làm một đề khác."))
	return b.String()
}

// renderPaper shows the exam text from the top, for the ready preview.
func (s *ExamScreen) renderPaper(width, height int) string {
	return clampLines(s.wrappedPaper(width), 0, height)
}

// renderPaperWindow shows the exam text at the current scroll offset.
func (s *ExamScreen) renderPaperWindow(width, height int) string {
	lines := s.wrappedPaper(width)
	start := s.paperLine
	if start > len(lines)-1 {
		start = max(len(lines)-1, 0)
		s.paperLine = start
	}
	return clampLines(lines, start, height)
}

func (s *ExamScreen) wrappedPaper(width int) []string {
	wrapped := lipgloss.NewStyle().
		Width(max(width-6, 20)).
		Foreground(theme.Text).
		Render(s.proctor.ExamText())
	return strings.Split(wrapped, "\n")
}

func clampLines(lines []string, start, height int) string {
	if start >= len(lines) {
		return ""
	}
	end := start + height
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}

// answerHeight gives the essay box a third of the screen.
func answerHeight(total int) int {
	h := total / 3
	if h < 5 {
		h = 5
	}
	return h
}
