package components

import (
	"charm.land/bubbles/v2/textarea"
	tea "charm.land/bubbletea/v2"
)

// TextArea wraps bubbles/textarea for long-form essay answers.
type TextArea struct {
	Model textarea.Model
}

// NewTextArea creates a multi-line input sized for essay writing.
func NewTextArea(placeholder string) TextArea {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.ShowLineNumbers = false
	ta.Focus()
	return TextArea{Model: ta}
}

// Init returns the initial command.
func (t TextArea) Init() tea.Cmd {
	return t.Model.Focus()
}

// Update handles messages.
func (t TextArea) Update(msg tea.Msg) (TextArea, tea.Cmd) {
	var cmd tea.Cmd
	t.Model, cmd = t.Model.Update(msg)
	return t, cmd
}

// View renders the text area.
func (t TextArea) View() string {
	return t.Model.View()
}

// Value returns the current content.
func (t TextArea) Value() string {
	return t.Model.Value()
}

// Resize fits the area into the given box.
func (t *TextArea) Resize(width, height int) {
	t.Model.SetWidth(width)
	t.Model.SetHeight(height)
}
