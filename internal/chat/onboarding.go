package chat

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ExamDate is the fixed national exam date the countdown targets.
var ExamDate = time.Date(2026, time.June, 25, 0, 0, 0, 0, time.Local)

// DaysUntilExam returns the whole-day countdown from now to ExamDate.
func DaysUntilExam(now time.Time) int {
	diff := ExamDate.Sub(now)
	days := int(diff.Hours() / 24)
	if diff > 0 && diff.Hours() > float64(days*24) {
		days++
	}
	return days
}

// parseTargetScore extracts the first number-like token from free text.
func parseTargetScore(text string) (float64, bool) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != ','
	})
	for _, f := range fields {
		f = strings.ReplaceAll(f, ",", ".")
		f = strings.Trim(f, ".")
		if f == "" {
			continue
		}
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// Onboarding copy.

func welcomeMessage(name, pronoun string) string {
	capped := pronoun
	if capped != "" {
		r := []rune(capped)
		capped = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return fmt.Sprintf("Xin chào **%s**! %s là gia sư Ngữ Văn sẽ đồng hành cùng em.\n\nEm đang đặt mục tiêu bao nhiêu điểm trong kỳ thi tốt nghiệp? (Thang điểm 10)", name, capped)
}

func testChoiceMessage(pronoun string) string {
	return fmt.Sprintf("Tuyệt vời! Để %s hiểu rõ trình độ hiện tại của em, mình cần một bài đánh giá đầu vào. Em chọn cách nào?\n\nA. Làm một đề thi thử 120 phút (chính xác nhất)\nB. Làm nhanh 10 câu trắc nghiệm đọc hiểu (khoảng 10 phút)\n\nTrả lời A hoặc B nhé.", pronoun)
}

func scoreNotParseableMessage() string {
	return "Em cho biết mục tiêu điểm số bằng một con số nhé, ví dụ: 8 hoặc 8.5 (thang điểm 10)."
}

func scoreAboveScaleMessage(score float64) string {
	return fmt.Sprintf("%.4g điểm? Thang điểm thi tốt nghiệp chỉ đến 10 thôi em. Em chọn lại một mục tiêu từ 5 đến 10 nhé.", score)
}

func scoreAimHigherMessage(score float64) string {
	return fmt.Sprintf("Mục tiêu %.4g hơi khiêm tốn đó! Với thời gian ôn còn lại, em hoàn toàn có thể nhắm từ 5 điểm trở lên. Đặt lại mục tiêu từ 5 đến 10 nhé.", score)
}

func tutoringGreeting(name, pronoun string, daysLeft int) string {
	return fmt.Sprintf("Chào %s! Còn %d ngày nữa là đến kỳ thi tốt nghiệp rồi. Hôm nay em muốn ôn phần nào: đọc hiểu, nghị luận xã hội hay nghị luận văn học? %s sẵn sàng rồi đây.", name, daysLeft, strings.ToUpper(pronoun[:1])+pronoun[1:])
}
