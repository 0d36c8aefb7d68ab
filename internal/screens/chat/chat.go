package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"

	tutor "github.com/vanmaster/vanmaster/internal/chat"
	"github.com/vanmaster/vanmaster/internal/screen"
	"github.com/vanmaster/vanmaster/internal/speech"
	"github.com/vanmaster/vanmaster/internal/ui/components"
	"github.com/vanmaster/vanmaster/internal/ui/layout"
)

// RefreshMsg redraws the transcript after an out-of-band session
// change (proactive nudge, finished infographic, exam grade).
type RefreshMsg struct{}

type sendResultMsg struct {
	Err error
}

type speakResultMsg struct {
	Path string
	Err  error
}

type rewriteResultMsg struct {
	Text string
	Err  error
}

// ChatScreen is the main tutoring conversation.
type ChatScreen struct {
	session *tutor.Session
	speaker speech.Synthesizer

	input     components.TextInput
	sending   bool
	greeted   bool
	scroll    int // lines scrolled up from the bottom
	statusMsg string
}

var _ screen.Screen = (*ChatScreen)(nil)
var _ screen.KeyHintProvider = (*ChatScreen)(nil)

// New creates the chat screen around an initialized session.
func New(session *tutor.Session, speaker speech.Synthesizer) *ChatScreen {
	if speaker == nil {
		speaker = speech.NopSynthesizer{}
	}
	return &ChatScreen{
		session: session,
		speaker: speaker,
		input:   components.NewTextInput("Nhắn cho gia sư...", 2000),
	}
}

func (s *ChatScreen) Init() tea.Cmd {
	if !s.greeted {
		s.greeted = true
		s.session.Welcome()
	}
	return s.input.Init()
}

func (s *ChatScreen) Title() string {
	return "Trò chuyện"
}

func (s *ChatScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Gửi"},
		{Key: "Ctrl+T", Description: "Đọc to"},
		{Key: "Ctrl+R", Description: "Viết lại"},
		{Key: "PgUp/PgDn", Description: "Cuộn"},
		{Key: "Ctrl+C", Description: "Thoát"},
	}
}

func (s *ChatScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case RefreshMsg:
		s.scroll = 0
		return s, nil

	case sendResultMsg:
		s.sending = false
		if msg.Err != nil && !errors.Is(msg.Err, tutor.ErrBusy) {
			s.statusMsg = "Lỗi gửi tin nhắn: " + msg.Err.Error()
		}
		return s, nil

	case speakResultMsg:
		if msg.Err != nil {
			s.statusMsg = "Chưa đọc được: " + msg.Err.Error()
		} else {
			s.statusMsg = "Đã lưu giọng đọc: " + msg.Path
		}
		return s, nil

	case rewriteResultMsg:
		s.sending = false
		if msg.Err != nil {
			if !errors.Is(msg.Err, tutor.ErrBusy) {
				s.statusMsg = "Chưa viết lại được: " + msg.Err.Error()
			}
			return s, nil
		}
		s.input.SetValue(msg.Text)
		s.statusMsg = "Đã viết lại câu, em xem rồi gửi nhé."
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			return s.submit()
		case "ctrl+t":
			return s, s.speakLastReply()
		case "ctrl+r":
			return s.rewriteDraft()
		case "pgup":
			s.scroll += 5
			return s, nil
		case "pgdown":
			s.scroll -= 5
			if s.scroll < 0 {
				s.scroll = 0
			}
			return s, nil
		}
		// Typing defers the proactive nudge.
		s.session.NoteActivity()
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

// imageCommand prefixes a message that attaches a photo from disk:
// "/anh bailam.jpg Thầy chấm giúp em".
const imageCommand = "/anh "

func (s *ChatScreen) submit() (screen.Screen, tea.Cmd) {
	if s.sending {
		return s, nil
	}
	text := s.input.Value()
	if text == "" {
		return s, nil
	}

	in := tutor.SendInput{Text: text}
	if strings.HasPrefix(text, imageCommand) {
		path, rest := splitImageCommand(strings.TrimPrefix(text, imageCommand))
		data, err := os.ReadFile(path)
		if err != nil {
			s.statusMsg = "Chưa đọc được ảnh: " + err.Error()
			return s, nil
		}
		in.Text = rest
		if in.Text == "" {
			in.Text = "Em gửi ảnh bài làm, nhờ thầy cô xem giúp em."
		}
		in.ImageData = data
		in.ImageMIME = imageMIME(path)
	}

	s.input.Reset()
	s.sending = true
	s.statusMsg = ""
	s.scroll = 0
	return s, s.sendCmd(in)
}

// splitImageCommand separates the file path (first field) from the
// message that rides along with the photo.
func splitImageCommand(arg string) (path, rest string) {
	arg = strings.TrimSpace(arg)
	if i := strings.IndexByte(arg, ' '); i >= 0 {
		return arg[:i], strings.TrimSpace(arg[i+1:])
	}
	return arg, ""
}

func imageMIME(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func (s *ChatScreen) sendCmd(in tutor.SendInput) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()
		return sendResultMsg{Err: s.session.HandleSend(ctx, in)}
	}
}

// rewriteDraft replaces the typed draft with an improved phrasing.
func (s *ChatScreen) rewriteDraft() (screen.Screen, tea.Cmd) {
	if s.sending {
		return s, nil
	}
	text := strings.TrimSpace(s.input.Value())
	if text == "" {
		return s, nil
	}
	s.sending = true
	s.statusMsg = "Đang viết lại..."
	return s, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		out, err := s.session.Rewrite(ctx, text)
		return rewriteResultMsg{Text: out, Err: err}
	}
}

// speakLastReply synthesizes the latest tutor message to an audio file.
func (s *ChatScreen) speakLastReply() tea.Cmd {
	messages := s.session.Messages()
	var text string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == tutor.RoleAssistant && messages[i].Content != "" {
			text = messages[i].Content
			break
		}
	}
	if text == "" {
		return nil
	}
	voice := s.session.Profile().VoiceGender

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		audio, err := s.speaker.Synthesize(ctx, text, voice)
		if err != nil {
			return speakResultMsg{Err: err}
		}
		path := filepath.Join(os.TempDir(), fmt.Sprintf("vanmaster-tts-%d.mp3", time.Now().Unix()))
		if err := os.WriteFile(path, audio, 0o644); err != nil {
			return speakResultMsg{Err: err}
		}
		return speakResultMsg{Path: path}
	}
}
