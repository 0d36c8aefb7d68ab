package chat

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// CurriculumLesson is one theory lesson backed by a DOCX file under the
// lesson directory.
type CurriculumLesson struct {
	Key      string // progress key, e.g. "s1-b2"
	Title    string
	DocxPath string // relative to the lesson directory
	Sections int    // teaching sections the tutor walks through
}

// Curriculum is the fixed THPT review track: four sections, eleven
// lessons, ordered reading first to writing last.
var Curriculum = []CurriculumLesson{
	{Key: "s1-b1", Title: "Ôn tập tri thức ngữ văn lớp 10", DocxPath: "trithucnguvan/bai1/lythuyet.docx", Sections: 4},
	{Key: "s1-b2", Title: "Ôn tập tri thức ngữ văn lớp 11", DocxPath: "trithucnguvan/bai2/lythuyet.docx", Sections: 4},
	{Key: "s1-b3", Title: "Ôn tập tri thức ngữ văn lớp 12", DocxPath: "trithucnguvan/bai3/lythuyet.docx", Sections: 4},
	{Key: "s2-b1", Title: "Lý thuyết đọc hiểu", DocxPath: "dochieu/bai1/lythuyet.docx", Sections: 4},
	{Key: "s2-b2", Title: "Thực hành đọc hiểu", DocxPath: "dochieu/bai2/lythuyet.docx", Sections: 4},
	{Key: "s3-b1", Title: "Lý thuyết viết đoạn văn", DocxPath: "vietdoan/bai1/lythuyet.docx", Sections: 4},
	{Key: "s3-b2", Title: "Hướng dẫn viết đoạn NLXH", DocxPath: "vietdoan/bai2/lythuyet.docx", Sections: 4},
	{Key: "s3-b3", Title: "Hướng dẫn viết đoạn NLVH", DocxPath: "vietdoan/bai3/lythuyet.docx", Sections: 4},
	{Key: "s4-b1", Title: "Lý thuyết viết bài văn", DocxPath: "vietbai/bai1/lythuyet.docx", Sections: 4},
	{Key: "s4-b2", Title: "Hướng dẫn viết bài NLXH", DocxPath: "vietbai/bai2/lythuyet.docx", Sections: 4},
	{Key: "s4-b3", Title: "Hướng dẫn viết bài NLVH", DocxPath: "vietbai/bai3/lythuyet.docx", Sections: 4},
}

func lessonMenuMessage() string {
	var b strings.Builder
	b.WriteString("Mình học bài nào hôm nay? Em chọn số nhé:\n\n")
	for i, l := range Curriculum {
		fmt.Fprintf(&b, "%d. %s\n", i+1, l.Title)
	}
	b.WriteString("\n(Hoặc gõ tên bài học.)")
	return b.String()
}

func lessonChoiceRepromptMessage() string {
	return fmt.Sprintf("Em chọn số từ 1 đến %d, hoặc gõ tên bài học nhé.", len(Curriculum))
}

// parseLessonChoice matches a menu number or a title fragment.
func parseLessonChoice(text string) (CurriculumLesson, bool) {
	trimmed := strings.TrimSpace(text)
	if n, err := strconv.Atoi(trimmed); err == nil {
		if n >= 1 && n <= len(Curriculum) {
			return Curriculum[n-1], true
		}
		return CurriculumLesson{}, false
	}

	lower := strings.ToLower(trimmed)
	if lower == "" {
		return CurriculumLesson{}, false
	}
	for _, l := range Curriculum {
		if strings.Contains(strings.ToLower(l.Title), lower) {
			return l, true
		}
	}
	return CurriculumLesson{}, false
}

func lessonDocxPath(dir string, l CurriculumLesson) string {
	return filepath.Join(dir, filepath.FromSlash(l.DocxPath))
}
