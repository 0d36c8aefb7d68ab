package chat

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	tutor "github.com/vanmaster/vanmaster/internal/chat"
	"github.com/vanmaster/vanmaster/internal/ui/theme"
)

func (s *ChatScreen) View(width, height int) string {
	transcriptHeight := height - 3 // input line + status line + spacing
	if transcriptHeight < 1 {
		transcriptHeight = 1
	}

	transcript := s.renderTranscript(width, transcriptHeight)

	var b strings.Builder
	b.WriteString(transcript)
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", max(width-4, 0))))
	b.WriteString("\n")

	if s.sending {
		b.WriteString(theme.Hint.Render("  Gia sư đang soạn câu trả lời..."))
	} else {
		b.WriteString("  " + s.input.View())
	}
	if s.statusMsg != "" {
		b.WriteString("\n" + theme.Hint.Render("  "+s.statusMsg))
	}
	return b.String()
}

// renderTranscript lays out the tail of the conversation that fits.
func (s *ChatScreen) renderTranscript(width, height int) string {
	wrap := lipgloss.NewStyle().Width(max(width-6, 20))

	var lines []string
	for _, m := range s.session.Messages() {
		lines = append(lines, s.renderMessage(m, wrap)...)
		lines = append(lines, "")
	}

	// Clamp scroll so the window always shows content.
	maxScroll := len(lines) - height
	if maxScroll < 0 {
		maxScroll = 0
	}
	scroll := s.scroll
	if scroll > maxScroll {
		scroll = maxScroll
	}

	end := len(lines) - scroll
	start := end - height
	if start < 0 {
		start = 0
	}
	return strings.Join(lines[start:end], "\n")
}

func (s *ChatScreen) renderMessage(m tutor.Message, wrap lipgloss.Style) []string {
	var b strings.Builder

	if m.Role == tutor.RoleUser {
		b.WriteString(theme.StudentLabel.Render("  Em: "))
		b.WriteString(theme.StudentText.Render(m.Content))
	} else {
		b.WriteString(theme.TutorLabel.Render("  Gia sư: "))
		b.WriteString(theme.TutorText.Render(m.Content))
	}

	if m.Image != "" {
		b.WriteString("\n" + theme.Hint.Render("  [ảnh đính kèm]"))
	}
	if m.GeneratedImage != "" {
		b.WriteString("\n" + theme.Warning.Render("  ✦ Đã tạo hình minh họa (lưu trong phiên)"))
	}
	if m.AIExam != nil {
		b.WriteString("\n" + theme.Warning.Render(fmt.Sprintf("  ▣ %s — %d phút, %d câu",
			m.AIExam.Title, m.AIExam.DurationMinutes, len(m.AIExam.Questions))))
	}
	if m.PracticeQuestion != "" {
		b.WriteString("\n" + theme.Correct.Render("  ✎ Bài tập: ") + theme.Body.Render(m.PracticeQuestion))
	}
	if m.Grade != nil {
		b.WriteString("\n" + theme.Correct.Render(fmt.Sprintf("  ★ Điểm: %.4g/10", m.Grade.ScoreOutOf10())))
	}

	return strings.Split(wrap.Render(b.String()), "\n")
}
