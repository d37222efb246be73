package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"nerdbook/internal/codegen"
	"nerdbook/internal/logging"
	"nerdbook/internal/notebook"
)

const listWidth = 28

type focusArea int

const (
	focusEditor focusArea = iota
	focusList
	focusPrompt
)

// Messages for tea updates
type (
	executedMsg struct {
		id     int
		output string
		err    error
	}
	generatedMsg struct {
		id     int
		output string
		err    error
	}
)

// Model is the bubbletea model of the notebook.
type Model struct {
	ctx context.Context
	nb  *notebook.Notebook
	gen codegen.Generator

	styles   Styles
	keys     keyMap
	editor   textarea.Model
	output   viewport.Model
	prompt   textinput.Model
	spinner  spinner.Model
	help     help.Model
	renderer *glamour.TermRenderer

	selected      int // cell ID, 0 when the notebook is empty
	focus         focusArea
	busy          bool
	showNamespace bool
	status        string
	width, height int
}

// New creates the model. gen may be nil, which disables generation.
func New(ctx context.Context, nb *notebook.Notebook, gen codegen.Generator) Model {
	styles := DefaultStyles()

	editor := textarea.New()
	editor.ShowLineNumbers = true
	editor.Placeholder = "Write code, then ctrl+r to run"
	editor.CharLimit = 0
	editor.Focus()

	prompt := textinput.New()
	prompt.Placeholder = "Describe the code to generate (enter to submit, esc to cancel)"
	prompt.Prompt = "✎ "
	prompt.PromptStyle = styles.Prompt
	prompt.CharLimit = 2048

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	m := Model{
		ctx:     ctx,
		nb:      nb,
		gen:     gen,
		styles:  styles,
		keys:    defaultKeys(),
		editor:  editor,
		output:  viewport.New(80, 10),
		prompt:  prompt,
		spinner: sp,
		help:    help.New(),
		focus:   focusEditor,
	}
	m.renderer = newRenderer(styles.Theme, 76)
	if cells := nb.Cells(); len(cells) > 0 {
		m.selected = cells[0].ID()
	}
	m.loadSelected()
	return m
}

// Run starts the TUI and blocks until the user quits or ctx is done.
func Run(ctx context.Context, nb *notebook.Notebook, gen codegen.Generator) error {
	logging.UI("starting TUI for session %s", nb.SessionID())
	p := tea.NewProgram(New(ctx, nb, gen), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func newRenderer(theme Theme, width int) *glamour.TermRenderer {
	style := "light"
	if theme.IsDark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(glamour.WithStylePath(style), glamour.WithWordWrap(width))
	if err != nil {
		logging.UI("markdown renderer unavailable: %v", err)
		return nil
	}
	return r
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case executedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = fmt.Sprintf("cell %d failed", msg.id)
		} else {
			m.status = fmt.Sprintf("cell %d ran", msg.id)
		}
		m.refreshOutput()
		return m, nil

	case generatedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "generation failed"
		} else {
			m.status = fmt.Sprintf("generated code for cell %d", msg.id)
		}
		if msg.id == m.selected {
			if c, ok := m.nb.Cell(msg.id); ok {
				m.editor.SetValue(c.Code())
			}
		}
		m.refreshOutput()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	if m.focus == focusPrompt {
		m.prompt, cmd = m.prompt.Update(msg)
	} else {
		m.editor, cmd = m.editor.Update(msg)
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.saveEditor()
		return m, tea.Quit
	}
	if m.focus == focusPrompt {
		return m.handlePromptKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Run):
		return m.runSelected()

	case key.Matches(msg, m.keys.Add):
		m.saveEditor()
		c := m.nb.AddCell("")
		m.selected = c.ID()
		m.loadSelected()
		m.status = fmt.Sprintf("added cell %d", c.ID())
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		m.deleteSelected()
		return m, nil

	case key.Matches(msg, m.keys.Generate):
		if m.gen == nil {
			m.status = "code generation is not configured (set GEMINI_API_KEY or ANTHROPIC_API_KEY)"
			return m, nil
		}
		if m.selected == 0 || m.busy {
			return m, nil
		}
		m.focus = focusPrompt
		m.editor.Blur()
		return m, m.prompt.Focus()

	case key.Matches(msg, m.keys.Namespace):
		m.showNamespace = !m.showNamespace
		m.refreshOutput()
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		if m.focus == focusEditor {
			m.saveEditor()
			m.focus = focusList
			m.editor.Blur()
			return m, nil
		}
		m.focus = focusEditor
		return m, m.editor.Focus()
	}

	if m.focus == focusList {
		switch {
		case key.Matches(msg, m.keys.Up):
			m.move(-1)
		case key.Matches(msg, m.keys.Down):
			m.move(1)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.prompt.Reset()
		m.prompt.Blur()
		m.focus = focusEditor
		return m, m.editor.Focus()

	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.prompt.Value())
		m.prompt.Reset()
		m.prompt.Blur()
		m.focus = focusEditor
		if text == "" {
			return m, m.editor.Focus()
		}
		m.busy = true
		m.status = "generating..."
		return m, tea.Batch(m.editor.Focus(), m.spinner.Tick, generateCmd(m.ctx, m.nb, m.gen, m.selected, text))
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m Model) runSelected() (tea.Model, tea.Cmd) {
	if m.selected == 0 || m.busy {
		return m, nil
	}
	m.saveEditor()
	m.busy = true
	m.showNamespace = false
	m.status = fmt.Sprintf("running cell %d", m.selected)
	return m, tea.Batch(m.spinner.Tick, executeCmd(m.ctx, m.nb, m.selected))
}

func executeCmd(ctx context.Context, nb *notebook.Notebook, id int) tea.Cmd {
	return func() tea.Msg {
		out, err := nb.Execute(ctx, id)
		return executedMsg{id: id, output: out, err: err}
	}
}

func generateCmd(ctx context.Context, nb *notebook.Notebook, gen codegen.Generator, id int, prompt string) tea.Cmd {
	return func() tea.Msg {
		out, err := nb.Generate(ctx, id, gen, prompt)
		return generatedMsg{id: id, output: out, err: err}
	}
}

// =============================================================================
// SELECTION
// =============================================================================

func (m *Model) index() int {
	for i, c := range m.nb.Cells() {
		if c.ID() == m.selected {
			return i
		}
	}
	return -1
}

func (m *Model) move(delta int) {
	cells := m.nb.Cells()
	if len(cells) == 0 {
		return
	}
	i := m.index() + delta
	if i < 0 || i >= len(cells) {
		return
	}
	m.selected = cells[i].ID()
	m.loadSelected()
}

func (m *Model) deleteSelected() {
	if m.selected == 0 {
		return
	}
	i := m.index()
	id := m.selected
	m.nb.DeleteCell(id)
	m.status = fmt.Sprintf("deleted cell %d", id)

	cells := m.nb.Cells()
	switch {
	case len(cells) == 0:
		m.selected = 0
	case i >= len(cells):
		m.selected = cells[len(cells)-1].ID()
	default:
		m.selected = cells[i].ID()
	}
	m.loadSelected()
}

// saveEditor writes the editor content back to the selected cell.
func (m *Model) saveEditor() {
	c, ok := m.nb.Cell(m.selected)
	if !ok || c.Code() == m.editor.Value() {
		return
	}
	c.SetCode(m.editor.Value())
}

func (m *Model) loadSelected() {
	if c, ok := m.nb.Cell(m.selected); ok {
		m.editor.SetValue(c.Code())
	} else {
		m.editor.SetValue("")
	}
	m.refreshOutput()
}

func (m *Model) refreshOutput() {
	m.output.SetContent(m.outputText())
	m.output.GotoTop()
}

func (m *Model) outputText() string {
	if m.showNamespace {
		return m.namespaceText()
	}
	c, ok := m.nb.Cell(m.selected)
	if !ok {
		return m.styles.Muted.Render("No cells. Press ctrl+a to add one.")
	}
	out, has := c.Output()
	if !has {
		return m.styles.Muted.Render("Not run yet.")
	}
	switch c.Status() {
	case notebook.StatusGenerated:
		if m.renderer != nil {
			if rendered, err := m.renderer.Render(out); err == nil {
				return strings.TrimRight(rendered, "\n")
			}
		}
	case notebook.StatusError:
		return m.styles.Error.Render(out)
	}
	return out
}

func (m *Model) namespaceText() string {
	bindings := m.nb.Namespace()
	if len(bindings) == 0 {
		return m.styles.Muted.Render("Namespace is empty.")
	}
	nameW, typeW := 4, 4
	for _, b := range bindings {
		nameW = max(nameW, len(b.Name))
		typeW = max(typeW, len(b.Type))
	}
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render(fmt.Sprintf("%-*s  %-*s  %s", nameW, "NAME", typeW, "TYPE", "VALUE")))
	for _, b := range bindings {
		sb.WriteString(fmt.Sprintf("\n%-*s  %-*s  %s", nameW, b.Name, typeW, b.Type, b.Preview))
	}
	return sb.String()
}

// =============================================================================
// VIEW
// =============================================================================

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	rightW := max(w-listWidth-4, 20)
	body := max(h-6, 8)
	editorH := body / 2

	m.editor.SetWidth(rightW - 4)
	m.editor.SetHeight(editorH - 2)
	m.output.Width = rightW - 4
	m.output.Height = max(body-editorH-2, 3)
	m.prompt.Width = rightW - 4
	m.help.Width = w
	m.renderer = newRenderer(m.styles.Theme, rightW-6)
	m.refreshOutput()
}

func (m Model) View() string {
	header := m.styles.Header.Render("nerdbook") + " " +
		m.styles.Muted.Render(fmt.Sprintf("%s · session %s", m.nb.Kernel().Language(), shortID(m.nb.SessionID())))

	listPane := m.styles.Pane
	editorPane := m.styles.Pane
	if m.focus == focusList {
		listPane = m.styles.FocusedPane
	} else if m.focus == focusEditor {
		editorPane = m.styles.FocusedPane
	}

	left := listPane.Width(listWidth - 2).Render(m.cellList())
	outputTitle := "Output"
	if m.showNamespace {
		outputTitle = "Namespace"
	}
	right := lipgloss.JoinVertical(lipgloss.Left,
		editorPane.Render(m.editor.View()),
		m.styles.Pane.Render(m.styles.Title.Render(outputTitle)+"\n"+m.output.View()),
	)

	var status string
	if m.busy {
		status = m.spinner.View() + " "
	}
	status += m.status

	parts := []string{header, lipgloss.JoinHorizontal(lipgloss.Top, left, right)}
	if m.focus == focusPrompt {
		parts = append(parts, m.prompt.View())
	}
	parts = append(parts, m.styles.Footer.Render(status), m.help.ShortHelpView(m.keys.help()))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) cellList() string {
	cells := m.nb.Cells()
	if len(cells) == 0 {
		return m.styles.Muted.Render("(empty)")
	}
	lines := make([]string, 0, len(cells))
	for _, c := range cells {
		line := fmt.Sprintf("%s %d %s", glyph(c.Status()), c.ID(), summary(c.Code(), listWidth-10))
		if c.ID() == m.selected {
			lines = append(lines, m.styles.SelectedCell.Render(line))
		} else {
			lines = append(lines, m.styles.Cell.Render(line))
		}
	}
	return strings.Join(lines, "\n")
}

func glyph(s notebook.Status) string {
	switch s {
	case notebook.StatusOK:
		return "✓"
	case notebook.StatusError:
		return "✗"
	case notebook.StatusRunning:
		return "…"
	case notebook.StatusGenerated:
		return "✎"
	default:
		return "·"
	}
}

// summary is the first non-blank, non-comment line of code, truncated.
func summary(code string, limit int) string {
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if r := []rune(line); len(r) > limit {
			return string(r[:limit-1]) + "…"
		}
		return line
	}
	return "(empty)"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
