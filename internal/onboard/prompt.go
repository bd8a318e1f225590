package onboard

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("onboarding cancelled")

var (
	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	optionStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true).
			Padding(0, 0, 0, 2)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
)

// PromptResolver asks on a terminal using small inline bubbletea programs.
type PromptResolver struct {
	in  io.Reader
	out io.Writer
}

func NewPromptResolver(in io.Reader, out io.Writer) *PromptResolver {
	return &PromptResolver{in: in, out: out}
}

func (p *PromptResolver) run(m tea.Model) (tea.Model, error) {
	return tea.NewProgram(m, tea.WithInput(p.in), tea.WithOutput(p.out)).Run()
}

// Resolve reads one line of text. An empty answer yields def.
func (p *PromptResolver) Resolve(label, def string) (string, error) {
	result, err := p.run(newInputModel(label, def))
	if err != nil {
		return "", err
	}
	final := result.(inputModel)
	if final.cancelled {
		return "", ErrCancelled
	}
	return final.answer(), nil
}

// Choose shows options as a list with def preselected.
func (p *PromptResolver) Choose(label string, options []string, def string) (string, error) {
	result, err := p.run(newPickerModel(label, options, def))
	if err != nil {
		return "", err
	}
	final := result.(pickerModel)
	if final.chosen < 0 {
		return "", ErrCancelled
	}
	return final.options[final.chosen], nil
}

// Wait runs fn while a spinner shows label.
func (p *PromptResolver) Wait(label string, fn func() error) error {
	result, err := p.run(spinnerModel{label: label, fn: fn})
	if err != nil {
		return err
	}
	return result.(spinnerModel).err
}

type inputModel struct {
	label     string
	def       string
	input     textinput.Model
	done      bool
	cancelled bool
}

func newInputModel(label, def string) inputModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = def
	ti.Focus()
	return inputModel{label: label, def: def, input: ti}
}

func (m inputModel) answer() string {
	if v := strings.TrimSpace(m.input.Value()); v != "" {
		return v
	}
	return m.def
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.done || m.cancelled {
		return fmt.Sprintf("%s %s\n", labelStyle.Render(m.label+":"), m.answer())
	}
	s := labelStyle.Render(m.label)
	if m.def != "" {
		s += hintStyle.Render(" [" + m.def + "]")
	}
	return s + "\n" + m.input.View() + "\n"
}

type pickerModel struct {
	label   string
	options []string
	cursor  int
	chosen  int // -1 = no choice yet, -2 = quit
}

func newPickerModel(label string, options []string, def string) pickerModel {
	m := pickerModel{label: label, options: options, chosen: -1}
	for i, o := range options {
		if o == def {
			m.cursor = i
		}
	}
	return m
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		m.chosen = -2
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case "enter":
		m.chosen = m.cursor
		return m, tea.Quit
	}
	return m, nil
}

func (m pickerModel) View() string {
	if m.chosen >= 0 {
		return fmt.Sprintf("%s %s\n", labelStyle.Render(m.label+":"), m.options[m.chosen])
	}
	if m.chosen == -2 {
		return ""
	}
	s := labelStyle.Render(m.label) + "\n"
	for i, o := range m.options {
		if i == m.cursor {
			s += selectedStyle.Render("> "+o) + "\n"
		} else {
			s += optionStyle.Render(o) + "\n"
		}
	}
	return s + hintStyle.Render("↑/↓/j/k navigate  enter select  q quit") + "\n"
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type waitDoneMsg struct{ err error }

type spinnerTickMsg struct{}

type spinnerModel struct {
	label string
	fn    func() error
	frame int
	err   error
	done  bool
}

func (m spinnerModel) Init() tea.Cmd {
	fn := m.fn
	return tea.Batch(func() tea.Msg { return waitDoneMsg{err: fn()} }, m.tick())
}

func (m spinnerModel) tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case waitDoneMsg:
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case spinnerTickMsg:
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, m.tick()
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.err = ErrCancelled
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s %s...\n", spinnerStyle.Render(spinnerFrames[m.frame]), m.label)
}
