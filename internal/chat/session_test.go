package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanmaster/vanmaster/internal/ai"
	"github.com/vanmaster/vanmaster/internal/llm"
	"github.com/vanmaster/vanmaster/internal/profile"
)

type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]*profile.UserProfile
	memory   map[string][]profile.MemoryMessage
	lessons  map[string]profile.LessonProgress
	updates  []map[string]any
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: map[string]*profile.UserProfile{},
		memory:   map[string][]profile.MemoryMessage{},
		lessons:  map[string]profile.LessonProgress{},
	}
}

func (f *fakeStore) GetProfile(_ context.Context, uid string) (*profile.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[uid]
	if !ok {
		return nil, profile.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) CreateProfile(_ context.Context, p *profile.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.profiles[p.UID] = &cp
	return nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, uid string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[uid]
	if !ok {
		return profile.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "targetScore":
			score := v.(float64)
			p.TargetScore = &score
		case "assessmentDone":
			p.AssessmentDone = v.(bool)
		case "isOnboarded":
			p.IsOnboarded = v.(bool)
		case "diagnosticScore":
			score := v.(float64)
			p.DiagnosticScore = &score
		case "xp":
			p.XP = v.(int)
		case "progress":
			p.Progress = v.(int)
		case "userTraits":
			p.UserTraits = v.([]string)
		}
	}
	f.updates = append(f.updates, fields)
	return nil
}

func (f *fakeStore) SaveSubmission(context.Context, string, *profile.Submission) (string, error) {
	return "sub-1", nil
}

func (f *fakeStore) UpdateSubmissionGrade(context.Context, string, string, *ai.ExamGrade) error {
	return nil
}

func (f *fakeStore) BestScores(context.Context, string) (map[int]float64, error) {
	return map[int]float64{}, nil
}

func (f *fakeStore) SaveChatMemory(_ context.Context, uid string, messages []profile.MemoryMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memory[uid] = messages
	return nil
}

func (f *fakeStore) LoadChatMemory(_ context.Context, uid string) ([]profile.MemoryMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memory[uid], nil
}

func (f *fakeStore) UpdateLessonProgress(_ context.Context, _, key string, lp profile.LessonProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lessons[key] = lp
	return nil
}

func (f *fakeStore) updateWith(field string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.updates {
		if _, ok := u[field]; ok {
			return u
		}
	}
	return nil
}

type fakeAssistant struct {
	mu sync.Mutex

	chatReply *ai.ChatReply
	chatErr   error
	chatCalls []ai.ChatInput

	quiz    *ai.QuizData
	quizErr error

	exam      *ai.ExamData
	examTypes []string

	image        string
	imagePrompts []string

	proactiveText string
	traits        []string

	// When set, Rewrite blocks until the channel is closed.
	rewriteGate chan struct{}
}

func (f *fakeAssistant) Chat(_ context.Context, in ai.ChatInput) (*ai.ChatReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls = append(f.chatCalls, in)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if f.chatReply != nil {
		return f.chatReply, nil
	}
	return &ai.ChatReply{Text: "Được rồi, mình cùng phân tích nhé."}, nil
}

func (f *fakeAssistant) GenerateQuiz(context.Context) (*ai.QuizData, error) {
	if f.quizErr != nil {
		return nil, f.quizErr
	}
	return f.quiz, nil
}

func (f *fakeAssistant) GenerateExam(_ context.Context, examType string) (*ai.ExamData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.examTypes = append(f.examTypes, examType)
	if f.exam != nil {
		return f.exam, nil
	}
	return &ai.ExamData{Type: examType, Title: "Đề luyện tập", DurationMinutes: 30, Questions: []ai.ExamQuestion{{ID: 1}}}, nil
}

func (f *fakeAssistant) GenerateImage(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imagePrompts = append(f.imagePrompts, prompt)
	if f.image != "" {
		return f.image, nil
	}
	return "data:image/png;base64,aW1n", nil
}

func (f *fakeAssistant) Proactive(context.Context, []llm.Message) (string, error) {
	if f.proactiveText != "" {
		return f.proactiveText, nil
	}
	return "", errors.New("no proactive text configured")
}

func (f *fakeAssistant) ExtractTraits(context.Context, []llm.Message) ([]string, error) {
	return f.traits, nil
}

func (f *fakeAssistant) Rewrite(_ context.Context, text string) (string, error) {
	f.mu.Lock()
	gate := f.rewriteGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return "hay hơn: " + text, nil
}

func tenQuestionQuiz() *ai.QuizData {
	quiz := &ai.QuizData{Passage: "Sông Mã xa rồi Tây Tiến ơi...", Source: "Quang Dũng, Tây Tiến"}
	for i := 0; i < 10; i++ {
		quiz.Questions = append(quiz.Questions, ai.QuizQuestion{
			Q:       fmt.Sprintf("Câu hỏi %d", i+1),
			A:       "phương án A",
			B:       "phương án B",
			C:       "phương án C",
			D:       "phương án D",
			Correct: "a",
		})
	}
	return quiz
}

func newTestSession(t *testing.T, fs *fakeStore, fa *fakeAssistant, mutate func(*Config)) *Session {
	t.Helper()
	cfg := Config{
		UID:            "u1",
		Name:           "Minh",
		Store:          fs,
		AI:             fa,
		ProactiveDelay: time.Hour,
		SaveDebounce:   time.Hour,
		Now:            func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.Local) },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewSession(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func lastMessage(t *testing.T, s *Session) Message {
	t.Helper()
	msgs := s.Messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func TestNewSessionCreatesProfileOnFirstLogin(t *testing.T) {
	fs := newFakeStore()
	s := newTestSession(t, fs, &fakeAssistant{}, nil)

	p := s.Profile()
	assert.Equal(t, "Minh", p.Name)
	assert.False(t, p.IsOnboarded)
	assert.Equal(t, PhaseAwaitingScore, s.Phase())

	welcome := s.Welcome()
	assert.Contains(t, welcome.Content, "Minh")
	assert.Contains(t, welcome.Content, "mục tiêu")
}

func TestTargetScoreCapture(t *testing.T) {
	fs := newFakeStore()
	s := newTestSession(t, fs, &fakeAssistant{}, nil)
	s.Welcome()
	ctx := context.Background()

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "8"}))

	assert.Equal(t, PhaseAwaitingTestChoice, s.Phase())
	p := s.Profile()
	require.NotNil(t, p.TargetScore)
	assert.Equal(t, 8.0, *p.TargetScore)
	assert.Contains(t, lastMessage(t, s).Content, "A.")
	require.NotNil(t, fs.updateWith("targetScore"))
}

func TestTargetScoreRejections(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"not a number", "chưa biết nữa", "một con số"},
		{"above scale", "em muốn 12 điểm", "Thang điểm"},
		{"too low", "chắc 3 thôi", "từ 5 điểm trở lên"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeStore()
			s := newTestSession(t, fs, &fakeAssistant{}, nil)
			s.Welcome()

			require.NoError(t, s.HandleSend(context.Background(), SendInput{Text: tt.text}))

			assert.Equal(t, PhaseAwaitingScore, s.Phase(), "invalid input must not advance")
			assert.Nil(t, s.Profile().TargetScore)
			assert.Contains(t, lastMessage(t, s).Content, tt.want)
		})
	}
}

func TestChoiceAStartsMockExam(t *testing.T) {
	fs := newFakeStore()
	var diagnostic *bool
	s := newTestSession(t, fs, &fakeAssistant{}, func(cfg *Config) {
		cfg.StartExam = func(d bool) { diagnostic = &d }
	})
	ctx := context.Background()
	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "9"}))

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "A"}))

	require.NotNil(t, diagnostic, "StartExam must be invoked")
	assert.True(t, *diagnostic)
}

func TestChoiceBRunsDiagnosticQuiz(t *testing.T) {
	fs := newFakeStore()
	fa := &fakeAssistant{quiz: tenQuestionQuiz()}
	s := newTestSession(t, fs, fa, nil)
	ctx := context.Background()
	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "8.5"}))

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "b"}))
	assert.Equal(t, PhaseQuizReading, s.Phase())
	assert.Contains(t, lastMessage(t, s).Content, "Sông Mã")

	// Random chatter does not start the questions.
	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "đoạn này hay quá"}))
	assert.Equal(t, PhaseQuizReading, s.Phase())

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "bt"}))
	assert.Equal(t, PhaseQuizQuestioning, s.Phase())
	assert.Contains(t, lastMessage(t, s).Content, "Câu 1/10")

	// An answer outside a-d re-prompts without consuming the question.
	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "e"}))
	assert.Equal(t, PhaseQuizQuestioning, s.Phase())
	assert.Contains(t, lastMessage(t, s).Content, "A, B, C hoặc D")

	// 7 correct, 3 wrong: 70% lands in the standard tier.
	answers := []string{"a", "a", "a", "a", "a", "a", "a", "b", "b", "b"}
	for _, ans := range answers {
		require.NoError(t, s.HandleSend(ctx, SendInput{Text: ans}))
	}

	assert.Equal(t, PhaseTutoring, s.Phase())
	msgs := s.Messages()
	summary := msgs[len(msgs)-2]
	assert.Contains(t, summary.Content, "7/10")
	assert.Contains(t, summary.Content, "lộ trình chuẩn")

	finalize := fs.updateWith("assessmentDone")
	require.NotNil(t, finalize, "diagnostic finalize must be persisted")
	assert.Equal(t, true, finalize["assessmentDone"])
	assert.Equal(t, true, finalize["isOnboarded"], "flags must land in the same update")
	assert.Equal(t, 7.0, finalize["diagnosticScore"])

	// The quiz is gone; the next message goes to the AI tutor.
	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "a"}))
	fa.mu.Lock()
	defer fa.mu.Unlock()
	assert.Len(t, fa.chatCalls, 1)
}

func TestQuizGenerationFailureKeepsChoiceOpen(t *testing.T) {
	fs := newFakeStore()
	fa := &fakeAssistant{quizErr: errors.New("model unavailable")}
	s := newTestSession(t, fs, fa, nil)
	ctx := context.Background()
	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "7"}))

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "B"}))

	assert.Equal(t, PhaseAwaitingTestChoice, s.Phase())
	assert.Contains(t, lastMessage(t, s).Content, "thử lại")
	assert.False(t, s.Profile().AssessmentDone)
}

func onboardedStore() *fakeStore {
	fs := newFakeStore()
	target := 8.0
	fs.profiles["u1"] = &profile.UserProfile{
		UID: "u1", Name: "Minh", VoiceGender: profile.VoiceFemale,
		TargetScore: &target, IsOnboarded: true, AssessmentDone: true,
		Weaknesses: []string{"mở bài"}, Strengths: []string{}, Level: "Tân Binh",
	}
	return fs
}

func TestTutoringChatCarriesProfileContext(t *testing.T) {
	fs := onboardedStore()
	fa := &fakeAssistant{}
	s := newTestSession(t, fs, fa, nil)
	assert.Equal(t, PhaseTutoring, s.Phase())

	require.NoError(t, s.HandleSend(context.Background(), SendInput{Text: "phân tích giúp em bài Việt Bắc"}))

	fa.mu.Lock()
	defer fa.mu.Unlock()
	require.Len(t, fa.chatCalls, 1)
	in := fa.chatCalls[0]
	assert.Equal(t, "Minh", in.Profile.Name)
	assert.Equal(t, []string{"mở bài"}, in.Profile.Weaknesses)
	assert.Equal(t, "phân tích giúp em bài Việt Bắc", in.Text)
}

func TestChatFailureShowsConnectionMessage(t *testing.T) {
	fs := onboardedStore()
	fa := &fakeAssistant{chatErr: errors.New("boom")}
	s := newTestSession(t, fs, fa, nil)

	require.NoError(t, s.HandleSend(context.Background(), SendInput{Text: "xin chào"}))

	assert.Contains(t, lastMessage(t, s).Content, "gửi lại tin nhắn")
}

func TestExamKeywordOpensTypeMenu(t *testing.T) {
	fs := onboardedStore()
	fa := &fakeAssistant{}
	s := newTestSession(t, fs, fa, nil)
	ctx := context.Background()

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "cô tạo đề cho em với"}))
	assert.Equal(t, PhaseAwaitingExamType, s.Phase())
	assert.Contains(t, lastMessage(t, s).Content, "Đọc hiểu")

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "xyz"}))
	assert.Equal(t, PhaseAwaitingExamType, s.Phase(), "bad pick re-prompts")

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "1"}))
	assert.Equal(t, PhaseTutoring, s.Phase())

	fa.mu.Lock()
	defer fa.mu.Unlock()
	assert.Equal(t, []string{"reading"}, fa.examTypes)
	assert.Empty(t, fa.chatCalls, "keyword turns never reach the chat model")
	assert.NotNil(t, lastMessage(t, s).AIExam)
}

func TestGraphicKeywordCapturesTopic(t *testing.T) {
	fs := onboardedStore()
	fa := &fakeAssistant{}
	s := newTestSession(t, fs, fa, nil)
	ctx := context.Background()

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "vẽ giúp em cái sơ đồ"}))
	assert.Equal(t, PhaseAwaitingGraphicTopic, s.Phase())

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "sơ đồ tư duy Tây Tiến"}))
	assert.Equal(t, PhaseTutoring, s.Phase())

	fa.mu.Lock()
	defer fa.mu.Unlock()
	require.Len(t, fa.imagePrompts, 1)
	assert.Contains(t, fa.imagePrompts[0], "sơ đồ tư duy Tây Tiến")
	assert.NotEmpty(t, lastMessage(t, s).GeneratedImage)
}

func TestDirectivesAttachToReply(t *testing.T) {
	fs := onboardedStore()
	fa := &fakeAssistant{chatReply: &ai.ChatReply{
		Text: "Thử sức nhé! [PRACTICE]Phân tích hình tượng người lính trong Tây Tiến.[/PRACTICE]",
	}}
	s := newTestSession(t, fs, fa, nil)

	require.NoError(t, s.HandleSend(context.Background(), SendInput{Text: "cho em bài tập"}))

	msg := lastMessage(t, s)
	assert.Equal(t, "Thử sức nhé!", msg.Content)
	assert.Equal(t, "Phân tích hình tượng người lính trong Tây Tiến.", msg.PracticeQuestion)
}

func TestLessonDirectivesPersistProgress(t *testing.T) {
	fs := onboardedStore()
	fa := &fakeAssistant{chatReply: &ai.ChatReply{Text: "Xong phần một. [SECTION_DONE]"}}
	s := newTestSession(t, fs, fa, nil)
	ctx := context.Background()
	s.StartLesson(ctx, "tay-tien", "Nội dung bài Tây Tiến...", 3)

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "em hiểu rồi"}))

	fs.mu.Lock()
	lp := fs.lessons["tay-tien"]
	fs.mu.Unlock()
	assert.Equal(t, profile.LessonInProgress, lp.Status)
	assert.Equal(t, 1, lp.SectionsDone)

	fa.mu.Lock()
	in := fa.chatCalls[0]
	fa.mu.Unlock()
	assert.Contains(t, in.Profile.LessonText, "Tây Tiến")
}

func TestAddGradeMessageRefreshesProfile(t *testing.T) {
	fs := newFakeStore()
	target := 8.0
	fs.profiles["u1"] = &profile.UserProfile{
		UID: "u1", Name: "Minh", VoiceGender: profile.VoiceMale,
		TargetScore: &target, Weaknesses: []string{}, Strengths: []string{},
	}
	s := newTestSession(t, fs, &fakeAssistant{}, nil)
	assert.Equal(t, PhaseAwaitingTestChoice, s.Phase())

	// The grading pipeline finalized onboarding out of band.
	fs.mu.Lock()
	fs.profiles["u1"].AssessmentDone = true
	fs.profiles["u1"].IsOnboarded = true
	fs.mu.Unlock()

	grade := &ai.ExamGrade{Score: 6.5, MaxScore: 10, Feedback: "Bài viết có tiến bộ."}
	s.AddGradeMessage(context.Background(), grade, []string{"mở bài"})

	assert.Equal(t, PhaseTutoring, s.Phase())
	msg := lastMessage(t, s)
	require.NotNil(t, msg.Grade)
	assert.Contains(t, msg.Content, "6.5/10")
	assert.Contains(t, msg.Content, "mở bài")
}

func TestProactiveNudgeAppends(t *testing.T) {
	fs := onboardedStore()
	fa := &fakeAssistant{proactiveText: "Em còn nhớ biện pháp tu từ trong câu thơ vừa học không?"}
	updated := make(chan struct{}, 4)
	s := newTestSession(t, fs, fa, func(cfg *Config) {
		cfg.ProactiveDelay = 10 * time.Millisecond
		cfg.OnUpdate = func() { updated <- struct{}{} }
	})

	require.NoError(t, s.HandleSend(context.Background(), SendInput{Text: "dạ vâng"}))

	select {
	case <-updated:
	case <-time.After(2 * time.Second):
		t.Fatal("proactive nudge never fired")
	}
	assert.Contains(t, lastMessage(t, s).Content, "biện pháp tu từ")
}

func TestCloseFlushesMemoryWindow(t *testing.T) {
	fs := onboardedStore()
	fa := &fakeAssistant{}
	s := newTestSession(t, fs, fa, nil)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		require.NoError(t, s.HandleSend(ctx, SendInput{Text: fmt.Sprintf("tin nhắn %d", i)}))
	}
	require.NoError(t, s.Close(ctx))

	fs.mu.Lock()
	saved := fs.memory["u1"]
	fs.mu.Unlock()
	assert.Len(t, saved, memoryWindow)
	assert.True(t, strings.HasPrefix(saved[len(saved)-1].Content, "Được rồi") ||
		strings.HasPrefix(saved[len(saved)-1].Content, "tin nhắn"))

	// Close is idempotent and later sends are rejected.
	require.NoError(t, s.Close(ctx))
	assert.ErrorIs(t, s.HandleSend(ctx, SendInput{Text: "muộn rồi"}), ErrClosed)
}

func TestRewritePassthrough(t *testing.T) {
	fs := onboardedStore()
	s := newTestSession(t, fs, &fakeAssistant{}, nil)

	out, err := s.Rewrite(context.Background(), "câu văn vụng về")
	require.NoError(t, err)
	assert.Equal(t, "hay hơn: câu văn vụng về", out)
}

func TestRewriteGatedAgainstConcurrentGeneration(t *testing.T) {
	fs := onboardedStore()
	fa := &fakeAssistant{rewriteGate: make(chan struct{})}
	s := newTestSession(t, fs, fa, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := s.Rewrite(ctx, "câu nháp")
		done <- err
	}()
	require.Eventually(t, s.IsLoading, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.HandleSend(ctx, SendInput{Text: "xin chào"}), ErrBusy)
	_, err := s.Rewrite(ctx, "câu khác")
	assert.ErrorIs(t, err, ErrBusy)

	close(fa.rewriteGate)
	require.NoError(t, <-done)

	require.NoError(t, s.Close(ctx))
	_, err = s.Rewrite(ctx, "muộn rồi")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestImageDirectiveArrivesAsFollowUp(t *testing.T) {
	fs := onboardedStore()
	fa := &fakeAssistant{chatReply: &ai.ChatReply{
		Text:        "Đây, em xem phần chữ trước nhé.",
		ImagePrompt: "chân dung Xuân Diệu thời Thơ mới",
	}}
	updated := make(chan struct{}, 4)
	s := newTestSession(t, fs, fa, func(cfg *Config) {
		cfg.OnUpdate = func() { updated <- struct{}{} }
	})

	require.NoError(t, s.HandleSend(context.Background(), SendInput{Text: "cho em xem chân dung Xuân Diệu"}))

	select {
	case <-updated:
	case <-time.After(2 * time.Second):
		t.Fatal("illustration never arrived")
	}

	msgs := s.Messages()
	require.GreaterOrEqual(t, len(msgs), 3)
	assert.Equal(t, "Đây, em xem phần chữ trước nhé.", msgs[len(msgs)-2].Content)
	assert.Empty(t, msgs[len(msgs)-2].GeneratedImage)
	assert.Equal(t, "Hình minh họa em cần đây!", msgs[len(msgs)-1].Content)
	assert.NotEmpty(t, msgs[len(msgs)-1].GeneratedImage)

	fa.mu.Lock()
	defer fa.mu.Unlock()
	require.Len(t, fa.imagePrompts, 1)
	assert.Equal(t, "chân dung Xuân Diệu thời Thơ mới", fa.imagePrompts[0])
}

func TestProactiveNudgeRearmsAfterFiring(t *testing.T) {
	fs := onboardedStore()
	fa := &fakeAssistant{proactiveText: "Ôn tiếp một chút nhé?"}
	updated := make(chan struct{}, 8)
	s := newTestSession(t, fs, fa, func(cfg *Config) {
		cfg.ProactiveDelay = 20 * time.Millisecond
		cfg.OnUpdate = func() { updated <- struct{}{} }
	})

	require.NoError(t, s.HandleSend(context.Background(), SendInput{Text: "dạ"}))

	// The nudge itself is an assistant message, so it arms the next one.
	for i := 0; i < 2; i++ {
		select {
		case <-updated:
		case <-time.After(2 * time.Second):
			t.Fatalf("nudge %d never fired", i+1)
		}
	}

	nudges := 0
	for _, m := range s.Messages() {
		if m.Content == "Ôn tiếp một chút nhé?" {
			nudges++
		}
	}
	assert.GreaterOrEqual(t, nudges, 2)
}

func TestNoteActivityDefersNudge(t *testing.T) {
	fs := onboardedStore()
	fa := &fakeAssistant{proactiveText: "Còn đó không em?"}
	updated := make(chan struct{}, 4)
	s := newTestSession(t, fs, fa, func(cfg *Config) {
		cfg.ProactiveDelay = 400 * time.Millisecond
		cfg.OnUpdate = func() { updated <- struct{}{} }
	})

	require.NoError(t, s.HandleSend(context.Background(), SendInput{Text: "dạ"}))
	time.Sleep(200 * time.Millisecond)
	s.NoteActivity()

	// Without the reset the nudge would land around the 400ms mark.
	select {
	case <-updated:
		t.Fatal("typing should push the nudge back")
	case <-time.After(280 * time.Millisecond):
	}

	select {
	case <-updated:
	case <-time.After(2 * time.Second):
		t.Fatal("nudge never fired after the pause")
	}
	assert.Contains(t, lastMessage(t, s).Content, "Còn đó không em?")
}

func TestMockExamKeywordEntersExamRoom(t *testing.T) {
	fs := onboardedStore()
	fa := &fakeAssistant{}
	var started []bool
	s := newTestSession(t, fs, fa, func(cfg *Config) {
		cfg.StartExam = func(diagnostic bool) { started = append(started, diagnostic) }
	})

	require.NoError(t, s.HandleSend(context.Background(), SendInput{Text: "cho em làm đề thi thử ạ"}))

	assert.Equal(t, []bool{false}, started)
	assert.Equal(t, PhaseTutoring, s.Phase(), "no sub-dialog: the exam room takes over")
	assert.Contains(t, lastMessage(t, s).Content, "phòng thi")
	fa.mu.Lock()
	defer fa.mu.Unlock()
	assert.Empty(t, fa.chatCalls)
	assert.Empty(t, fa.examTypes, "a real past paper, not a generated one")
}

func TestLessonKeywordOpensMenu(t *testing.T) {
	fs := onboardedStore()
	fa := &fakeAssistant{}
	var extracted []string
	s := newTestSession(t, fs, fa, func(cfg *Config) {
		cfg.LessonDir = "lythuyet"
		cfg.Extract = func(path string) (string, error) {
			extracted = append(extracted, path)
			return "Tri thức ngữ văn lớp 10 gồm các thể loại...", nil
		}
	})
	ctx := context.Background()

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "cô dạy em bài mới đi, em muốn học bài"}))
	assert.Equal(t, PhaseAwaitingLessonChoice, s.Phase())
	assert.Contains(t, lastMessage(t, s).Content, Curriculum[0].Title)

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "không rõ"}))
	assert.Equal(t, PhaseAwaitingLessonChoice, s.Phase(), "bad pick re-prompts")

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "1"}))
	assert.Equal(t, PhaseTutoring, s.Phase())
	assert.Contains(t, lastMessage(t, s).Content, Curriculum[0].Title)

	require.Len(t, extracted, 1)
	assert.Equal(t, filepath.Join("lythuyet", filepath.FromSlash(Curriculum[0].DocxPath)), extracted[0])

	fs.mu.Lock()
	lp := fs.lessons[Curriculum[0].Key]
	fs.mu.Unlock()
	assert.Equal(t, profile.LessonInProgress, lp.Status)
	assert.Equal(t, Curriculum[0].Sections, lp.SectionsTotal)

	// The extracted theory rides along on the next tutoring turn.
	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "phần đầu nói gì ạ?"}))
	fa.mu.Lock()
	defer fa.mu.Unlock()
	require.Len(t, fa.chatCalls, 1)
	assert.Contains(t, fa.chatCalls[0].Profile.LessonText, "Tri thức ngữ văn lớp 10")
}

func TestLessonMenuWithoutExtractor(t *testing.T) {
	fs := onboardedStore()
	s := newTestSession(t, fs, &fakeAssistant{}, nil)
	ctx := context.Background()

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "em muốn học bài"}))
	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "2"}))

	assert.Equal(t, PhaseTutoring, s.Phase())
	assert.Contains(t, lastMessage(t, s).Content, "chưa được cài đặt")
}

func TestParseLessonChoice(t *testing.T) {
	lesson, ok := parseLessonChoice("3")
	require.True(t, ok)
	assert.Equal(t, "s1-b3", lesson.Key)

	lesson, ok = parseLessonChoice("lý thuyết đọc hiểu")
	require.True(t, ok)
	assert.Equal(t, "s2-b1", lesson.Key)

	for _, in := range []string{"", "0", "12", "bài không tồn tại"} {
		_, ok := parseLessonChoice(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestExamKeywordDuringQuizDropsQuiz(t *testing.T) {
	fs := newFakeStore()
	fa := &fakeAssistant{quiz: tenQuestionQuiz()}
	s := newTestSession(t, fs, fa, nil)
	ctx := context.Background()

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "8.5"}))
	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "b"}))
	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "bắt đầu"}))
	require.Equal(t, PhaseQuizQuestioning, s.Phase())

	// Mid-quiz the student changes their mind; the request wins over
	// answer parsing and the quiz is dropped.
	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "thôi, cô tạo đề cho em"}))
	assert.Equal(t, PhaseAwaitingExamType, s.Phase())

	require.NoError(t, s.HandleSend(ctx, SendInput{Text: "a"}))
	fa.mu.Lock()
	types := append([]string(nil), fa.examTypes...)
	fa.mu.Unlock()
	assert.Equal(t, []string{"reading"}, types, "the letter picks an exam, not a quiz answer")

	// Assessment never finished, so the gate is still up.
	assert.Equal(t, PhaseAwaitingTestChoice, s.Phase())
}

func TestDaysUntilExamCountdown(t *testing.T) {
	now := time.Date(2026, time.June, 20, 12, 0, 0, 0, time.Local)
	assert.Equal(t, 5, DaysUntilExam(now))
	assert.Equal(t, 0, DaysUntilExam(ExamDate))
}
