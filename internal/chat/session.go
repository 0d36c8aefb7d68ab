package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vanmaster/vanmaster/internal/ai"
	"github.com/vanmaster/vanmaster/internal/llm"
	"github.com/vanmaster/vanmaster/internal/logger"
	"github.com/vanmaster/vanmaster/internal/profile"
)

const (
	defaultProactiveDelay = 25 * time.Second
	defaultSaveDebounce   = 3 * time.Second

	// memoryWindow is how many trailing messages persist as AI memory.
	memoryWindow = 15
	// traitsInterval is how many user turns pass between trait
	// extraction runs.
	traitsInterval = 20

	xpPerMessage       = 50
	progressPerMessage = 2
)

var (
	// ErrBusy is returned while a previous send is still generating.
	ErrBusy = errors.New("chat: reply in progress")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("chat: session closed")
)

// Assistant is the AI surface the session drives. *ai.Service
// implements it.
type Assistant interface {
	Chat(ctx context.Context, in ai.ChatInput) (*ai.ChatReply, error)
	GenerateQuiz(ctx context.Context) (*ai.QuizData, error)
	GenerateExam(ctx context.Context, examType string) (*ai.ExamData, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
	Proactive(ctx context.Context, history []llm.Message) (string, error)
	ExtractTraits(ctx context.Context, history []llm.Message) ([]string, error)
	Rewrite(ctx context.Context, text string) (string, error)
}

// Config wires a session to its collaborators.
type Config struct {
	UID   string
	Name  string // used only when the profile does not exist yet
	Email string

	Store profile.Store
	AI    Assistant
	Log   *logger.Logger

	// StartExam hands control to the exam screen. diagnostic is true
	// when the exam doubles as the onboarding assessment.
	StartExam func(diagnostic bool)

	// OnUpdate is invoked after an asynchronous transcript change
	// (proactive nudge, finished infographic, exam grade). Never
	// called with the session lock held.
	OnUpdate func()

	// LessonDir holds the curriculum DOCX files; Extract turns one
	// into plain text. Both empty disables lesson-teaching mode.
	LessonDir string
	Extract   func(path string) (string, error)

	ProactiveDelay time.Duration
	SaveDebounce   time.Duration

	Now func() time.Time
}

// lessonRun is the in-progress teaching state for one curriculum lesson.
type lessonRun struct {
	key      string
	text     string
	progress profile.LessonProgress
}

// SendInput is one user turn handed to the session.
type SendInput struct {
	Text      string
	ImageData []byte
	ImageMIME string
}

// Session owns the conversation state machine: transcript, onboarding
// and quiz gates, directive handling, proactive nudges, and memory
// persistence. Safe for concurrent use.
type Session struct {
	cfg Config
	log *logger.Logger

	mu        sync.Mutex
	profile   *profile.UserProfile
	messages  []Message
	phase     Phase
	quiz      *quizState
	lesson    *lessonRun
	isLoading bool
	closed    bool

	turnsSinceTraits int
	proactiveBusy    bool
	proactiveTimer   *time.Timer
	saveTimer        *time.Timer
}

// NewSession loads (or creates) the profile and chat memory and
// returns a ready session. Call Welcome once to emit the greeting.
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Log == nil {
		cfg.Log = logger.Default()
	}
	if cfg.ProactiveDelay <= 0 {
		cfg.ProactiveDelay = defaultProactiveDelay
	}
	if cfg.SaveDebounce <= 0 {
		cfg.SaveDebounce = defaultSaveDebounce
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	p, err := cfg.Store.GetProfile(ctx, cfg.UID)
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			return nil, fmt.Errorf("loading profile: %w", err)
		}
		p = profile.NewProfile(cfg.UID, cfg.Name, cfg.Email)
		if err := cfg.Store.CreateProfile(ctx, p); err != nil {
			return nil, fmt.Errorf("creating profile: %w", err)
		}
	}

	memory, err := cfg.Store.LoadChatMemory(ctx, cfg.UID)
	if err != nil {
		cfg.Log.Warn("chat memory load failed", "err", err)
	}
	messages := make([]Message, 0, len(memory))
	for _, m := range memory {
		messages = append(messages, Message{Role: m.Role, Content: m.Content})
	}

	s := &Session{
		cfg:      cfg,
		log:      cfg.Log.WithPrefix("chat"),
		profile:  p,
		messages: messages,
		phase:    phaseForProfile(p),
	}
	return s, nil
}

func phaseForProfile(p *profile.UserProfile) Phase {
	switch {
	case !p.IsOnboarded && p.TargetScore == nil:
		return PhaseAwaitingScore
	case !p.AssessmentDone:
		return PhaseAwaitingTestChoice
	default:
		return PhaseTutoring
	}
}

// Welcome appends and returns the greeting matching the profile state.
func (s *Session) Welcome() Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	pronoun := s.profile.VoiceGender.Pronoun()
	var text string
	switch s.phase {
	case PhaseAwaitingScore:
		text = welcomeMessage(s.profile.Name, pronoun)
	case PhaseAwaitingTestChoice:
		text = testChoiceMessage(pronoun)
	default:
		text = tutoringGreeting(s.profile.Name, pronoun, DaysUntilExam(s.cfg.Now()))
	}
	msg := Message{Role: RoleAssistant, Content: text}
	s.messages = append(s.messages, msg)
	return msg
}

// Messages returns a snapshot of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Phase returns the current dispatch phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Profile returns a snapshot of the current profile.
func (s *Session) Profile() profile.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.profile
}

// IsLoading reports whether a reply is currently being generated.
func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoading
}

// HandleSend processes one user turn through the phase machine. It
// blocks until the reply is appended; the UI runs it off the render
// goroutine.
func (s *Session) HandleSend(ctx context.Context, in SendInput) error {
	text := strings.TrimSpace(in.Text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.isLoading {
		return ErrBusy
	}
	if text == "" && len(in.ImageData) == 0 {
		return nil
	}

	s.stopProactiveLocked()

	user := Message{Role: RoleUser, Content: text}
	if len(in.ImageData) > 0 {
		mime := in.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		user.Image = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(in.ImageData)
	}
	s.messages = append(s.messages, user)
	s.bumpEngagementLocked(ctx)

	switch s.phase {
	case PhaseAwaitingScore:
		s.handleScoreLocked(ctx, text)
	case PhaseAwaitingTestChoice:
		s.handleTestChoiceLocked(ctx, text)
	case PhaseQuizReading:
		s.handleQuizReadingLocked(text)
	case PhaseQuizQuestioning:
		s.handleQuizAnswerLocked(ctx, text)
	case PhaseAwaitingExamType:
		s.handleExamTypeLocked(ctx, text)
	case PhaseAwaitingGraphicTopic:
		s.handleGraphicTopicLocked(ctx, text)
	case PhaseAwaitingLessonChoice:
		s.handleLessonChoiceLocked(ctx, text)
	default:
		s.handleTutoringLocked(ctx, text, in)
	}

	s.scheduleSaveLocked()
	s.scheduleProactiveLocked()
	return nil
}

// bumpEngagementLocked awards per-message XP and progress. Best effort.
func (s *Session) bumpEngagementLocked(ctx context.Context) {
	s.profile.XP += xpPerMessage
	s.profile.Progress += progressPerMessage
	if s.profile.Progress > 100 {
		s.profile.Progress = 100
	}
	fields := map[string]any{"xp": s.profile.XP, "progress": s.profile.Progress}
	if err := s.cfg.Store.UpdateProfile(ctx, s.cfg.UID, fields); err != nil {
		s.log.Warn("engagement update failed", "err", err)
	}
}

// appendAssistantLocked appends a tutor message and rearms the
// proactive timer: every assistant-authored message resets the clock.
func (s *Session) appendAssistantLocked(text string) *Message {
	s.messages = append(s.messages, Message{Role: RoleAssistant, Content: text})
	s.scheduleProactiveLocked()
	return &s.messages[len(s.messages)-1]
}

// Onboarding: target score capture.

func (s *Session) handleScoreLocked(ctx context.Context, text string) {
	score, ok := parseTargetScore(text)
	switch {
	case !ok:
		s.appendAssistantLocked(scoreNotParseableMessage())
	case score > 10:
		s.appendAssistantLocked(scoreAboveScaleMessage(score))
	case score < 5:
		s.appendAssistantLocked(scoreAimHigherMessage(score))
	default:
		if err := s.cfg.Store.UpdateProfile(ctx, s.cfg.UID, map[string]any{"targetScore": score}); err != nil {
			s.log.Warn("target score save failed", "err", err)
		}
		s.profile.TargetScore = &score
		s.phase = PhaseAwaitingTestChoice
		s.appendAssistantLocked(testChoiceMessage(s.profile.VoiceGender.Pronoun()))
	}
}

// Onboarding: assessment method choice.

func (s *Session) handleTestChoiceLocked(ctx context.Context, text string) {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	if trimmed == "" {
		s.appendAssistantLocked(testChoiceRepromptMessage())
		return
	}
	switch trimmed[0] {
	case 'a':
		s.appendAssistantLocked("Tuyệt! Mình vào phòng thi nhé. Em có 120 phút, làm hết sức mình!")
		if s.cfg.StartExam != nil {
			s.cfg.StartExam(true)
		}
	case 'b':
		s.startQuizLocked(ctx)
	default:
		s.appendAssistantLocked(testChoiceRepromptMessage())
	}
}

func testChoiceRepromptMessage() string {
	return "Em trả lời A (thi thử 120 phút) hoặc B (trắc nghiệm nhanh 10 câu) nhé."
}

func (s *Session) startQuizLocked(ctx context.Context) {
	s.isLoading = true
	s.mu.Unlock()
	data, err := s.cfg.AI.GenerateQuiz(ctx)
	s.mu.Lock()
	s.isLoading = false

	if err != nil {
		s.log.Warn("quiz generation failed", "err", err)
		s.appendAssistantLocked(quizFailedMessage())
		return
	}
	s.quiz = &quizState{data: data}
	s.phase = PhaseQuizReading
	s.appendAssistantLocked(quizPassageMessage(data))
}

// Diagnostic quiz loop.

func (s *Session) handleQuizReadingLocked(text string) {
	if !isStartCue(text) {
		s.appendAssistantLocked(quizReadingRepromptMessage())
		return
	}
	s.phase = PhaseQuizQuestioning
	s.quiz.currentQ = 0
	q := s.quiz.data.Questions[0]
	s.appendAssistantLocked(quizQuestionMessage(q, 0, len(s.quiz.data.Questions)))
}

func (s *Session) handleQuizAnswerLocked(ctx context.Context, text string) {
	// Intent cues outrank the answer parse: an exam or graphic request
	// mid-quiz abandons the quiz instead of bouncing off the re-prompt.
	if wantsExam(text) {
		s.quiz = nil
		s.phase = PhaseAwaitingExamType
		s.appendAssistantLocked(examTypeMenuMessage())
		return
	}
	if wantsGraphic(text) {
		s.quiz = nil
		s.phase = PhaseAwaitingGraphicTopic
		s.appendAssistantLocked(graphicTopicPromptMessage())
		return
	}

	answer, ok := parseQuizAnswer(text)
	if !ok {
		s.appendAssistantLocked(quizInvalidAnswerMessage())
		return
	}

	s.quiz.answers = append(s.quiz.answers, answer)
	s.quiz.currentQ++
	if s.quiz.currentQ < len(s.quiz.data.Questions) {
		q := s.quiz.data.Questions[s.quiz.currentQ]
		s.appendAssistantLocked(quizQuestionMessage(q, s.quiz.currentQ, len(s.quiz.data.Questions)))
		return
	}

	result := scoreQuiz(s.quiz.data, s.quiz.answers)
	s.quiz = nil
	s.phase = PhaseTutoring

	diagnostic := float64(result.correct)
	fields := map[string]any{
		"assessmentDone":  true,
		"isOnboarded":     true,
		"diagnosticScore": diagnostic,
	}
	if err := s.cfg.Store.UpdateProfile(ctx, s.cfg.UID, fields); err != nil {
		s.log.Error("diagnostic finalize failed", "err", err)
	}
	s.profile.AssessmentDone = true
	s.profile.IsOnboarded = true
	s.profile.DiagnosticScore = &diagnostic

	s.appendAssistantLocked(quizSummaryMessage(result))
	s.appendAssistantLocked(tutoringGreeting(s.profile.Name, s.profile.VoiceGender.Pronoun(), DaysUntilExam(s.cfg.Now())))
}

// Generated-exam sub-dialog.

func (s *Session) handleExamTypeLocked(ctx context.Context, text string) {
	examType, ok := parseExamType(text)
	if !ok {
		s.appendAssistantLocked(examTypeRepromptMessage())
		return
	}
	// An unassessed student who detoured here returns to the gate.
	s.phase = phaseForProfile(s.profile)

	s.isLoading = true
	s.mu.Unlock()
	exam, err := s.cfg.AI.GenerateExam(ctx, examType)
	s.mu.Lock()
	s.isLoading = false

	if err != nil {
		s.log.Warn("exam generation failed", "err", err, "type", examType)
		s.appendAssistantLocked("Hệ thống chưa tạo được đề, em thử lại sau ít phút nhé.")
		return
	}
	msg := s.appendAssistantLocked(fmt.Sprintf("Đề của em đây: **%s** (%d phút). Làm bài xong em gửi đáp án vào đây để được chấm nhé!", exam.Title, exam.DurationMinutes))
	msg.AIExam = exam
}

// Infographic sub-dialog.

func (s *Session) handleGraphicTopicLocked(ctx context.Context, text string) {
	s.phase = phaseForProfile(s.profile)

	s.isLoading = true
	s.mu.Unlock()
	img, err := s.cfg.AI.GenerateImage(ctx, infographicPrompt(text))
	s.mu.Lock()
	s.isLoading = false

	if err != nil {
		s.log.Warn("infographic generation failed", "err", err)
		s.appendAssistantLocked("Chưa tạo được đồ họa, em thử lại với chủ đề khác nhé.")
		return
	}
	msg := s.appendAssistantLocked(fmt.Sprintf("Đồ họa về \"%s\" của em đây!", strings.TrimSpace(text)))
	msg.GeneratedImage = img
}

func infographicPrompt(topic string) string {
	return "Infographic giáo dục bằng tiếng Việt, phong cách thiết kế phẳng hiện đại, chủ đề: " + strings.TrimSpace(topic)
}

// Free-form tutoring.

func (s *Session) handleTutoringLocked(ctx context.Context, text string, in SendInput) {
	// "thi thử" outranks the generated-exam cues because the phrase
	// contains "đề thi" when the student writes "đề thi thử".
	if wantsMockExam(text) {
		s.appendAssistantLocked(mockExamStartMessage())
		if s.cfg.StartExam != nil {
			s.cfg.StartExam(false)
		}
		return
	}
	if wantsExam(text) {
		s.phase = PhaseAwaitingExamType
		s.appendAssistantLocked(examTypeMenuMessage())
		return
	}
	if wantsGraphic(text) {
		s.phase = PhaseAwaitingGraphicTopic
		s.appendAssistantLocked(graphicTopicPromptMessage())
		return
	}
	if wantsLesson(text) {
		s.phase = PhaseAwaitingLessonChoice
		s.appendAssistantLocked(lessonMenuMessage())
		return
	}

	history := toModelHistory(s.messages[:len(s.messages)-1])
	input := ai.ChatInput{
		History:   history,
		Text:      text,
		ImageData: in.ImageData,
		ImageMIME: in.ImageMIME,
		Profile:   s.profileContextLocked(),
	}

	s.isLoading = true
	s.mu.Unlock()
	reply, err := s.cfg.AI.Chat(ctx, input)
	s.mu.Lock()
	s.isLoading = false

	if err != nil {
		s.log.Warn("chat generation failed", "err", err)
		s.appendAssistantLocked("Mạng hơi chập chờn, em gửi lại tin nhắn giúp mình nhé.")
		return
	}

	clean, directives := ParseDirectives(reply.Text)
	msg := s.appendAssistantLocked(clean)
	if reply.ImagePrompt != "" {
		// The ack above shows immediately; the image arrives later as
		// its own message.
		s.spawnImageLocked(reply.ImagePrompt, "Hình minh họa em cần đây!")
	}
	s.applyDirectivesLocked(ctx, msg, directives)

	s.turnsSinceTraits++
	if s.turnsSinceTraits >= traitsInterval {
		s.turnsSinceTraits = 0
		s.spawnTraitsLocked()
	}
}

func (s *Session) profileContextLocked() ai.ProfileContext {
	pc := ai.ProfileContext{
		Name:        s.profile.Name,
		TargetScore: s.profile.TargetScore,
		Weaknesses:  s.profile.Weaknesses,
		Strengths:   s.profile.Strengths,
		Traits:      s.profile.UserTraits,
	}
	if s.lesson != nil {
		pc.LessonText = s.lesson.text
	}
	return pc
}

func (s *Session) applyDirectivesLocked(ctx context.Context, msg *Message, directives []Directive) {
	for _, d := range directives {
		switch d.Kind {
		case DirectiveExam:
			if msg.AIExam == nil {
				msg.AIExam = d.Exam
			}
		case DirectivePractice:
			if msg.PracticeQuestion == "" {
				msg.PracticeQuestion = d.Payload
			}
		case DirectiveInfographic:
			s.spawnInfographicLocked(d.Payload)
		case DirectiveSectionDone:
			s.advanceLessonLocked(ctx, func(lp *profile.LessonProgress) {
				lp.SectionsDone++
			})
		case DirectiveQuestionAsked:
			s.advanceLessonLocked(ctx, func(lp *profile.LessonProgress) {
				lp.QuestionsAsked++
			})
		case DirectiveQuestionCorrect:
			s.advanceLessonLocked(ctx, func(lp *profile.LessonProgress) {
				lp.QuestionsCorrect++
			})
		case DirectiveLessonComplete:
			s.advanceLessonLocked(ctx, func(lp *profile.LessonProgress) {
				lp.Status = profile.LessonCompleted
			})
			s.lesson = nil
		}
	}
}

// handleLessonChoiceLocked resolves a curriculum pick, loads the
// lesson text and enters lesson-teaching mode.
func (s *Session) handleLessonChoiceLocked(ctx context.Context, text string) {
	lesson, ok := parseLessonChoice(text)
	if !ok {
		s.appendAssistantLocked(lessonChoiceRepromptMessage())
		return
	}
	s.phase = PhaseTutoring

	if s.cfg.Extract == nil {
		s.appendAssistantLocked("Kho bài học chưa được cài đặt, em hỏi trực tiếp cũng được nhé.")
		return
	}
	content, err := s.cfg.Extract(lessonDocxPath(s.cfg.LessonDir, lesson))
	if err != nil {
		s.log.Warn("lesson content load failed", "err", err, "lesson", lesson.Key)
		s.appendAssistantLocked(fmt.Sprintf("Chưa mở được bài \"%s\", em thử bài khác nhé.", lesson.Title))
		return
	}

	s.startLessonLocked(ctx, lesson.Key, content, lesson.Sections)
	s.appendAssistantLocked(fmt.Sprintf("Mình bắt đầu bài **%s** nhé! Em cứ hỏi bất cứ lúc nào, còn giờ thì vào phần đầu tiên.", lesson.Title))
}

// StartLesson enters lesson-teaching mode with the given lesson
// content riding along on every chat prompt.
func (s *Session) StartLesson(ctx context.Context, key, text string, sectionsTotal int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLessonLocked(ctx, key, text, sectionsTotal)
}

func (s *Session) startLessonLocked(ctx context.Context, key, text string, sectionsTotal int) {
	lp := profile.LessonProgress{Status: profile.LessonInProgress, SectionsTotal: sectionsTotal}
	if existing, ok := s.profile.LessonProgress[key]; ok && existing.Status != profile.LessonNotStarted {
		lp = existing
		lp.Status = profile.LessonInProgress
	}
	s.lesson = &lessonRun{key: key, text: text, progress: lp}
	if err := s.cfg.Store.UpdateLessonProgress(ctx, s.cfg.UID, key, lp); err != nil {
		s.log.Warn("lesson progress save failed", "err", err, "lesson", key)
	}
}

func (s *Session) advanceLessonLocked(ctx context.Context, mutate func(*profile.LessonProgress)) {
	if s.lesson == nil {
		return
	}
	mutate(&s.lesson.progress)
	if err := s.cfg.Store.UpdateLessonProgress(ctx, s.cfg.UID, s.lesson.key, s.lesson.progress); err != nil {
		s.log.Warn("lesson progress save failed", "err", err, "lesson", s.lesson.key)
	}
}

// spawnInfographicLocked renders an AI-requested infographic in the
// background and appends it as its own message when done.
func (s *Session) spawnInfographicLocked(work string) {
	s.spawnImageLocked(infographicPrompt(work), fmt.Sprintf("Sơ đồ về \"%s\" đã xong, em xem nhé!", work))
}

// spawnImageLocked generates an image in the background and appends it
// as its own message, never blocking the turn that requested it.
func (s *Session) spawnImageLocked(prompt, doneText string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		img, err := s.cfg.AI.GenerateImage(ctx, prompt)
		if err != nil {
			s.log.Warn("image generation failed", "err", err, "prompt", prompt)
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		msg := s.appendAssistantLocked(doneText)
		msg.GeneratedImage = img
		s.scheduleSaveLocked()
		s.mu.Unlock()
		s.notify()
	}()
}

// spawnTraitsLocked distills learning traits from recent conversation
// in the background. Best effort.
func (s *Session) spawnTraitsLocked() {
	history := toModelHistory(s.messages)
	if len(history) > traitsInterval {
		history = history[len(history)-traitsInterval:]
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		traits, err := s.cfg.AI.ExtractTraits(ctx, history)
		if err != nil || len(traits) == 0 {
			return
		}

		s.mu.Lock()
		merged := mergeTraits(s.profile.UserTraits, traits)
		s.profile.UserTraits = merged
		s.mu.Unlock()

		if err := s.cfg.Store.UpdateProfile(ctx, s.cfg.UID, map[string]any{"userTraits": merged}); err != nil {
			s.log.Warn("traits save failed", "err", err)
		}
	}()
}

func mergeTraits(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, t := range existing {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, t)
	}
	for _, t := range incoming {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, strings.TrimSpace(t))
	}
	return merged
}

// AddGradeMessage appends a graded-exam report. Called by the exam
// flow after grading finishes; refreshes the profile so onboarding
// state set during grading is visible immediately.
func (s *Session) AddGradeMessage(ctx context.Context, grade *ai.ExamGrade, resolvedWeaknesses []string) {
	s.mu.Lock()

	if p, err := s.cfg.Store.GetProfile(ctx, s.cfg.UID); err == nil {
		s.profile = p
	}
	s.phase = phaseForProfile(s.profile)

	var b strings.Builder
	fmt.Fprintf(&b, "KẾT QUẢ BÀI THI: %.4g/10\n\n%s", grade.ScoreOutOf10(), grade.Feedback)
	if len(resolvedWeaknesses) > 0 {
		fmt.Fprintf(&b, "\n\nEm đã khắc phục được: %s. Tiến bộ rõ rệt đó!", strings.Join(resolvedWeaknesses, ", "))
	}
	msg := s.appendAssistantLocked(b.String())
	msg.Grade = grade

	s.scheduleSaveLocked()
	s.mu.Unlock()
	s.notify()
}

// Rewrite improves a draft sentence via the AI. Gated like HandleSend:
// a rewrite and a reply never generate at the same time.
func (s *Session) Rewrite(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	if s.isLoading {
		s.mu.Unlock()
		return "", ErrBusy
	}
	s.isLoading = true
	s.mu.Unlock()

	out, err := s.cfg.AI.Rewrite(ctx, text)

	s.mu.Lock()
	s.isLoading = false
	s.mu.Unlock()
	return out, err
}

// NoteActivity defers a pending proactive nudge while the student is
// typing. No-op when no nudge is armed.
func (s *Session) NoteActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.proactiveTimer == nil {
		return
	}
	s.scheduleProactiveLocked()
}

// Proactive nudge timer.

func (s *Session) scheduleProactiveLocked() {
	if !s.profile.AssessmentDone || len(s.messages) < 2 {
		return
	}
	s.stopProactiveLocked()
	s.proactiveTimer = time.AfterFunc(s.cfg.ProactiveDelay, s.fireProactive)
}

func (s *Session) stopProactiveLocked() {
	if s.proactiveTimer != nil {
		s.proactiveTimer.Stop()
		s.proactiveTimer = nil
	}
}

func (s *Session) fireProactive() {
	s.mu.Lock()
	if s.closed || s.isLoading || s.proactiveBusy {
		s.mu.Unlock()
		return
	}
	s.proactiveBusy = true
	history := toModelHistory(s.messages)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	question, err := s.cfg.AI.Proactive(ctx, history)

	s.mu.Lock()
	s.proactiveBusy = false
	if err != nil || question == "" || s.closed {
		s.mu.Unlock()
		if err != nil {
			s.log.Warn("proactive question failed", "err", err)
		}
		return
	}
	s.appendAssistantLocked(question)
	s.scheduleSaveLocked()
	s.mu.Unlock()
	s.notify()
}

// Memory persistence with debounce.

func (s *Session) scheduleSaveLocked() {
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveTimer = time.AfterFunc(s.cfg.SaveDebounce, s.flushMemory)
}

func (s *Session) flushMemory() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	snapshot := s.memorySnapshotLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.cfg.Store.SaveChatMemory(ctx, s.cfg.UID, snapshot); err != nil {
		s.log.Warn("chat memory save failed", "err", err)
	}
}

func (s *Session) memorySnapshotLocked() []profile.MemoryMessage {
	messages := s.messages
	if len(messages) > memoryWindow {
		messages = messages[len(messages)-memoryWindow:]
	}
	return toMemory(messages)
}

func (s *Session) notify() {
	if s.cfg.OnUpdate != nil {
		s.cfg.OnUpdate()
	}
}

// Close stops timers and flushes chat memory synchronously.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopProactiveLocked()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	snapshot := s.memorySnapshotLocked()
	s.mu.Unlock()

	if err := s.cfg.Store.SaveChatMemory(ctx, s.cfg.UID, snapshot); err != nil {
		return fmt.Errorf("saving chat memory: %w", err)
	}
	return nil
}
