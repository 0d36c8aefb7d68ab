package chat

import (
	"fmt"
	"strings"

	"github.com/vanmaster/vanmaster/internal/ai"
)

// quizState holds one diagnostic quiz run. Created when the quiz
// starts, reset when it finishes or is abandoned.
type quizState struct {
	data     *ai.QuizData
	currentQ int
	answers  []string
}

// startCues advance from the reading phase to the first question.
var startCues = map[string]bool{
	"bắt đầu": true,
	"bt":      true,
	"1":       true,
}

func isStartCue(text string) bool {
	return startCues[strings.ToLower(strings.TrimSpace(text))]
}

// parseQuizAnswer accepts only a first-character a/b/c/d, case
// insensitive.
func parseQuizAnswer(text string) (string, bool) {
	trimmed := strings.TrimSpace(strings.ToLower(text))
	if trimmed == "" {
		return "", false
	}
	c := trimmed[0]
	if c < 'a' || c > 'd' {
		return "", false
	}
	return string(c), true
}

// quizResult scores a completed quiz. Deterministic for a fixed
// question set and answer sequence.
type quizResult struct {
	correct int
	total   int
	percent int
	tier    string
}

func scoreQuiz(data *ai.QuizData, answers []string) quizResult {
	correct := 0
	for i, q := range data.Questions {
		if i < len(answers) && answers[i] == q.Correct {
			correct++
		}
	}
	total := len(data.Questions)
	percent := 0
	if total > 0 {
		percent = correct * 100 / total
	}
	return quizResult{
		correct: correct,
		total:   total,
		percent: percent,
		tier:    tierMessage(percent),
	}
}

func tierMessage(percent int) string {
	switch {
	case percent >= 80:
		return "Nền tảng đọc hiểu của em rất vững! Mình sẽ theo lộ trình nâng cao: đi sâu vào các dạng ngữ liệu khó và kỹ năng viết 9+."
	case percent >= 60:
		return "Em nắm khá chắc kiến thức cơ bản. Mình sẽ theo lộ trình chuẩn: ôn lý thuyết trọng tâm và luyện đề đều đặn."
	default:
		return "Mình sẽ bắt đầu từ nền tảng: củng cố kiến thức đọc hiểu cơ bản trước khi luyện đề. Đừng lo, còn đủ thời gian để bứt phá!"
	}
}

// Quiz copy.

func quizPassageMessage(data *ai.QuizData) string {
	return fmt.Sprintf("BÀI KIỂM TRA CHẨN ĐOÁN — ĐỌC HIỂU\n\n%s\n\n(%s)\n\nĐọc kỹ đoạn trích trên. Khi sẵn sàng, em gõ \"bắt đầu\" (hoặc \"bt\") để làm 10 câu trắc nghiệm nhé.", data.Passage, data.Source)
}

func quizQuestionMessage(q ai.QuizQuestion, index, total int) string {
	return fmt.Sprintf("Câu %d/%d: %s\n\nA. %s\nB. %s\nC. %s\nD. %s\n\nTrả lời A, B, C hoặc D.", index+1, total, q.Q, q.A, q.B, q.C, q.D)
}

func quizInvalidAnswerMessage() string {
	return "Em trả lời bằng một trong các chữ A, B, C hoặc D nhé."
}

func quizReadingRepromptMessage() string {
	return "Khi đọc xong đoạn trích, em gõ \"bắt đầu\" (hoặc \"bt\") để vào phần câu hỏi nhé."
}

func quizSummaryMessage(r quizResult) string {
	return fmt.Sprintf("KẾT QUẢ CHẨN ĐOÁN: %d/%d câu đúng (%d%%).\n\n%s", r.correct, r.total, r.percent, r.tier)
}

func quizFailedMessage() string {
	return "Hệ thống chưa tạo được bài kiểm tra, em thử lại sau ít phút nhé. Hoặc chọn A để làm đề thi thử thay thế."
}
