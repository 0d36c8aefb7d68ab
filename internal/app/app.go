package app

import (
	"fmt"
	"os"
	"sync"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	tutor "github.com/vanmaster/vanmaster/internal/chat"
	"github.com/vanmaster/vanmaster/internal/exam"
	"github.com/vanmaster/vanmaster/internal/router"
	"github.com/vanmaster/vanmaster/internal/screen"
	chatscr "github.com/vanmaster/vanmaster/internal/screens/chat"
	"github.com/vanmaster/vanmaster/internal/screens/examroom"
	"github.com/vanmaster/vanmaster/internal/speech"
	"github.com/vanmaster/vanmaster/internal/ui/layout"
)

// Notifier lets collaborators built before the Bubble Tea program
// exists (the chat session's callbacks) send messages into it.
type Notifier struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// Send delivers a message into the running program. Messages sent
// before the program starts are dropped.
func (n *Notifier) Send(msg tea.Msg) {
	n.mu.Lock()
	send := n.send
	n.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

func (n *Notifier) bind(send func(tea.Msg)) {
	n.mu.Lock()
	n.send = send
	n.mu.Unlock()
}

// Options carries the wired dependencies into the TUI.
type Options struct {
	Session    *tutor.Session
	Speaker    speech.Synthesizer
	NewProctor func(diagnostic bool) *exam.Proctor
	Notifier   *Notifier
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	opts   Options
	router *router.Router
	width  int
	height int
}

func newAppModel(opts Options) AppModel {
	return AppModel{
		opts:   opts,
		router: router.New(chatscr.New(opts.Session, opts.Speaker)),
	}
}

func (m AppModel) Init() tea.Cmd {
	active := m.router.Active()
	if active == nil {
		return nil
	}
	return active.Init()
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, m.router.Update(msg)

	case examroom.StartMsg:
		pushCmd := m.router.Push(examroom.New(m.opts.NewProctor(msg.Diagnostic)))
		sizeCmd := m.router.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
		return m, tea.Batch(pushCmd, sizeCmd)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if h, ok := m.router.Active().(screen.EscapeHandler); ok {
				if handled, cmd := h.HandleEscape(); handled {
					return m, cmd
				}
			}
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
			return m, nil
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	title := ""
	if active != nil {
		title = active.Title()
	}

	p := m.opts.Session.Profile()
	header := layout.RenderHeader(title, p.XP, tutor.DaysUntilExam(time.Now()), m.width)

	var footerHints []layout.KeyHint
	if hp, ok := active.(screen.KeyHintProvider); ok {
		footerHints = hp.KeyHints()
	}
	if len(footerHints) == 0 {
		footerHints = []layout.KeyHint{
			{Key: "Enter", Description: "Gửi"},
			{Key: "Ctrl+C", Description: "Thoát"},
		}
	}
	footer := layout.RenderFooter(footerHints, m.width)

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := m.height - headerHeight - footerHeight
	if contentHeight < 0 {
		contentHeight = 0
	}

	content := m.router.View(m.width, contentHeight)
	frame := layout.RenderFrame(header, content, footer, m.width, m.height)

	v.SetContent(frame)
	return v
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	p := tea.NewProgram(newAppModel(opts))
	if opts.Notifier != nil {
		opts.Notifier.bind(p.Send)
	}
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
