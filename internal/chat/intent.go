package chat

import "strings"

// Lightweight keyword heuristics run before the message reaches the
// model. Vietnamese is matched in lowercase with diacritics intact.

var examCues = []string{"tạo đề", "ra đề", "đề thi"}

var graphicCues = []string{"đồ họa", "infographic", "poster", "vẽ"}

var mockCues = []string{"thi thử", "phòng thi", "làm đề thật"}

var lessonCues = []string{"học bài", "bài học", "dạy em", "lý thuyết"}

func wantsExam(text string) bool {
	return containsAny(text, examCues)
}

func wantsGraphic(text string) bool {
	return containsAny(text, graphicCues)
}

func wantsMockExam(text string) bool {
	return containsAny(text, mockCues)
}

func wantsLesson(text string) bool {
	return containsAny(text, lessonCues)
}

func containsAny(text string, cues []string) bool {
	lower := strings.ToLower(text)
	for _, cue := range cues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

// parseExamType maps a user reply in the exam type sub-dialog to a
// generator exam type. Accepts the menu number, its letter or a keyword.
func parseExamType(text string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case lower == "1" || lower == "a" || strings.Contains(lower, "đọc hiểu"):
		return "reading", true
	case lower == "2" || lower == "b" || strings.Contains(lower, "viết") || strings.Contains(lower, "làm văn"):
		return "writing", true
	case lower == "3" || lower == "c" || strings.Contains(lower, "đầy đủ") || strings.Contains(lower, "full"):
		return "full", true
	}
	return "", false
}

func examTypeMenuMessage() string {
	return "Em muốn luyện dạng đề nào?\n\nA. Đọc hiểu (30 phút)\nB. Viết (90 phút)\nC. Đề đầy đủ (120 phút)\n\nTrả lời A, B hoặc C nhé."
}

func examTypeRepromptMessage() string {
	return "Em chọn A (Đọc hiểu), B (Viết) hoặc C (Đề đầy đủ) nhé."
}

func mockExamStartMessage() string {
	return "Được! Mình vào phòng thi với đề thật nhé. Em có 120 phút, cố gắng hết mình!"
}

func graphicTopicPromptMessage() string {
	return "Em muốn tạo đồ họa về chủ đề gì? (ví dụ: sơ đồ tư duy bài Tây Tiến, timeline văn học 1945-1975...)"
}
