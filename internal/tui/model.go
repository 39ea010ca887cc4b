// Package tui provides the Bubble Tea terminal front-end for the chat widget.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ashureev/auditsseus-chat/internal/chat"
)

const (
	headerHeight = 1
	inputHeight  = 3
	statusHeight = 1
	maxAttach    = 32 << 20
)

// Model is the Bubble Tea model of the terminal chat.
type Model struct {
	widget *chat.Widget
	ctx    context.Context
	logger *slog.Logger

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	status string
	width  int
	height int
}

// New creates a model driving widget. ctx bounds every relay call.
func New(ctx context.Context, widget *chat.Widget, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message, or /attach <path>"
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	return Model{
		widget:   widget,
		ctx:      ctx,
		logger:   logger,
		viewport: vp,
		input:    ti,
		spinner:  sp,
		status:   "/attach <path>  /detach  /reset  /quit",
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case replyMsg:
		m.widget.Complete(msg.turn, msg.body, msg.err)
		if msg.err != nil {
			m.logger.Warn("turn failed", "turn_id", msg.turn.ID, "error", msg.err)
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.widget.IsLoading() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.refresh()
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	header := headerStyle.Render("auditsseus chat")
	status := m.status
	if f := m.widget.SelectedFile(); f != nil {
		status = fmt.Sprintf("attached: %s (%s)", f.Name, f.ContentType)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		inputStyle.Render(m.input.View()),
		statusStyle.Render(status),
	)
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	vh := m.height - headerHeight - inputHeight - statusHeight
	if vh < 1 {
		vh = 1
	}
	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = vh

	const promptLen = 2
	iw := m.width - 4 - promptLen
	if iw < 10 {
		iw = 10
	}
	m.input.Width = iw

	m.refresh()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case tea.KeyEnter:
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if !strings.HasPrefix(m.input.Value(), "/") {
		m.widget.SetInput(m.input.Value())
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if strings.HasPrefix(value, "/") {
		m.input.SetValue("")
		return m.runCommand(value)
	}

	m.widget.SetInput(m.input.Value())
	turn, ok := m.widget.Begin()
	if !ok {
		return m, nil
	}
	m.input.SetValue("")
	m.status = ""
	m.refresh()

	return m, tea.Batch(m.spinner.Tick, m.dispatch(turn))
}

// dispatch performs the relay call off the update loop.
func (m Model) dispatch(turn *chat.Turn) tea.Cmd {
	widget, ctx := m.widget, m.ctx
	return func() tea.Msg {
		body, err := widget.Dispatch(ctx, turn)
		return replyMsg{turn: turn, body: body, err: err}
	}
}

func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/detach":
		m.widget.ClearFile()
		m.status = "attachment cleared"
	case "/reset":
		if err := m.widget.Reset(); err != nil {
			m.status = err.Error()
			break
		}
		m.status = "conversation cleared"
		m.refresh()
	case "/attach":
		if arg == "" {
			m.status = "usage: /attach <path>"
			break
		}
		f, err := loadFile(arg)
		if err == nil {
			err = m.widget.SelectFile(f)
		}
		if err != nil {
			m.logger.Info("attach rejected", "path", arg, "error", err)
			m.status = err.Error()
			break
		}
		m.status = ""
	default:
		m.status = fmt.Sprintf("unknown command %q", name)
	}
	return m, nil
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderTranscript(m.widget.Messages(), m.spinner.View()))
	m.viewport.GotoBottom()
}

func loadFile(path string) (chat.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return chat.File{}, fmt.Errorf("open attachment: %w", err)
	}
	if info.IsDir() {
		return chat.File{}, errors.New("attachment is a directory")
	}
	if info.Size() > maxAttach {
		return chat.File{}, fmt.Errorf("attachment larger than %d bytes", maxAttach)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return chat.File{}, fmt.Errorf("read attachment: %w", err)
	}
	return chat.File{Name: filepath.Base(path), Data: data}, nil
}
