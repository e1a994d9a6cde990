// Package ui is the terminal front end: the push-to-talk orb, the recording
// status, and whatever the assistant last answered.
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"voicecue/interpret"
	"voicecue/session"
)

type RecordingStartedMsg struct{ ID string }
type RecordingStoppedMsg struct {
	ID    string
	Audio time.Duration
	Err   error
}
type ChunkSentMsg struct {
	Audio time.Duration
	Bytes int
}
type LevelMsg struct{ Level float64 }
type SilenceMsg struct{ Event session.SilenceEvent }
type PermissionDeniedMsg struct{ Err error }
type OutcomeMsg struct {
	Outcome interpret.Outcome
	State   interpret.PresentationState
}
type AnimateMsg struct {
	ID        interpret.ResultID
	Animation interpret.Animation
}
type ConnectionMsg struct {
	Endpoint string
	Online   bool
}
type DeviceMsg struct{ Name string }
type copiedMsg struct{ err error }
type tickMsg time.Time

type Options struct {
	Binding string // shown in the help line
	Version string
	Now     func() time.Time
	Copy    func(string) error
	// Dismiss is called when the user closes the clarification.
	Dismiss func()
	// Toggle starts or stops a recording from the keyboard when the global
	// hotkey is unavailable.
	Toggle func()
}

type animation struct {
	id interpret.ResultID
	a  interpret.Animation
	at time.Time
}

type Model struct {
	opts Options

	width, height int
	frame         int

	recording bool
	startedAt time.Time
	audio     time.Duration
	level     float64
	peak      float64
	chunks    int
	sentBytes int
	silence   session.SilenceEvent
	lastErr   string

	endpoint string
	online   bool
	device   string

	responses     int
	clarification string
	clarifying    bool
	copied        bool
	copyErr       string
	result        interpret.ResultID
	hasResult     bool
	anim          *animation
}

func NewModel(opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Binding == "" {
		opts.Binding = "Ctrl+Shift+Space"
	}
	return Model{opts: opts}
}

func tick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.key(msg)

	case tickMsg:
		m.frame++
		return m, tick()

	case RecordingStartedMsg:
		m.recording = true
		m.startedAt = m.opts.Now()
		m.audio = 0
		m.level, m.peak = 0, 0
		m.chunks, m.sentBytes = 0, 0
		m.silence = session.SilenceNone
		m.lastErr = ""
		m.anim = nil

	case RecordingStoppedMsg:
		m.recording = false
		m.level = 0
		m.audio = msg.Audio
		m.silence = session.SilenceNone
		if msg.Err != nil {
			m.lastErr = msg.Err.Error()
		}

	case ChunkSentMsg:
		m.chunks++
		m.sentBytes += msg.Bytes
		m.audio = msg.Audio

	case LevelMsg:
		if m.recording {
			m.level = m.level*0.6 + msg.Level*0.4
			m.peak = max(m.peak, msg.Level)
		}

	case SilenceMsg:
		m.silence = msg.Event

	case PermissionDeniedMsg:
		m.lastErr = "microphone access denied"
		if msg.Err != nil {
			m.lastErr = msg.Err.Error()
		}

	case OutcomeMsg:
		m.responses++
		if msg.State.HasClarification != m.clarifying || msg.State.PendingClarification != m.clarification {
			m.copied, m.copyErr = false, ""
		}
		m.clarifying = msg.State.HasClarification
		m.clarification = msg.State.PendingClarification
		m.hasResult = msg.State.HasResult
		m.result = msg.State.ActiveResult

	case AnimateMsg:
		m.anim = &animation{id: msg.ID, a: msg.Animation, at: m.opts.Now()}

	case ConnectionMsg:
		m.endpoint = msg.Endpoint
		m.online = msg.Online

	case DeviceMsg:
		m.device = msg.Name

	case copiedMsg:
		m.copied = msg.err == nil
		m.copyErr = ""
		if msg.err != nil {
			m.copyErr = msg.err.Error()
		}
	}
	return m, nil
}

func (m Model) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "c":
		if !m.clarifying || m.opts.Copy == nil {
			return m, nil
		}
		text, copyFn := m.clarification, m.opts.Copy
		return m, func() tea.Msg { return copiedMsg{err: copyFn(text)} }

	case "esc":
		if m.clarifying {
			m.clarifying = false
			m.clarification = ""
			m.copied = false
			if m.opts.Dismiss != nil {
				m.opts.Dismiss()
			}
		} else {
			m.anim = nil
		}

	case "enter":
		if m.opts.Toggle != nil {
			m.opts.Toggle()
		}
	}
	return m, nil
}

// fade returns how bright the orb and the result card are at now. The orb
// fades out first, then the card fades in.
func (m Model) fade(now time.Time) (orb, card float64) {
	if m.anim == nil || m.recording {
		return 1, 0
	}
	elapsed := now.Sub(m.anim.at)
	if out := m.anim.a.FadeOut; elapsed < out {
		return 1 - float64(elapsed)/float64(out), 0
	}
	elapsed -= m.anim.a.FadeOut
	if in := m.anim.a.FadeIn; in > 0 && elapsed < in {
		return 0, float64(elapsed) / float64(in)
	}
	return 0, 1
}

func renderCard(a *animation, brightness float64) string {
	grey := greyStyles[min(int(brightness*float64(len(greyStyles))), len(greyStyles)-1)]
	body := strings.Join([]string{
		strings.ToUpper(a.a.Name),
		"",
		filepath.Base(a.a.Image),
		fmt.Sprintf("#%s", a.id),
	}, "\n")
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(grey.GetForeground()).
		Foreground(grey.GetForeground()).
		Width(orbCharsW-2).
		Height(orbCharsH-2).
		Align(lipgloss.Center, lipgloss.Center).
		Render(body) + "\n"
}

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	standbyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpBold     = helpStyle.Bold(true)
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	questionText = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
)

func (m Model) statusLines() []string {
	var lines []string
	if m.recording {
		elapsed := m.opts.Now().Sub(m.startedAt).Seconds()
		lines = append(lines, recStyle.Render(fmt.Sprintf("● REC %.1fs", elapsed)))
		lines = append(lines, infoStyle.Render(fmt.Sprintf("  %d chunks, %.0f KB sent", m.chunks, float64(m.sentBytes)/1024)))
		switch m.silence {
		case session.SilenceWarn, session.SilenceRepeat:
			lines = append(lines, warnStyle.Render("  ⚠ no voice detected"))
		}
	} else {
		lines = append(lines, standbyStyle.Render("○ STANDBY"))
	}

	if m.endpoint != "" {
		if m.online {
			lines = append(lines, onlineStyle.Render("⇄ "+m.endpoint))
		} else {
			lines = append(lines, warnStyle.Render("✕ offline ("+m.endpoint+")"))
		}
	}
	if m.device != "" {
		lines = append(lines, standbyStyle.Render(m.device))
	}
	if m.lastErr != "" {
		lines = append(lines, warnStyle.Render(m.lastErr))
	}

	lines = append(lines, "")
	lines = append(lines, helpBold.Render(m.opts.Binding)+helpStyle.Render(" to talk"))
	if m.opts.Version != "" {
		lines = append(lines, helpStyle.Render("voicecue "+m.opts.Version))
	}
	return lines
}

func (m Model) answerPanel(width int) string {
	var b strings.Builder
	wrap := max(width-2, 10)

	switch {
	case m.clarifying:
		b.WriteString(titleStyle.Render("The assistant needs more detail") + "\n\n")
		lines := wrapText(m.clarification, wrap)
		for i, line := range lines {
			b.WriteString(questionText.Render(line))
			if i == len(lines)-1 && m.copied {
				b.WriteString(" " + onlineStyle.Render("[✓ copied]"))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n" + helpStyle.Render("c copy · esc dismiss"))
		if m.copyErr != "" {
			b.WriteString("\n" + warnStyle.Render(m.copyErr))
		}
	case m.hasResult:
		b.WriteString(titleStyle.Render(fmt.Sprintf("Result #%s (response %d)", m.result, m.responses)))
	default:
		b.WriteString(standbyStyle.Render("No answers yet"))
	}
	return b.String()
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const leftWidth = orbCharsW + 1
	orbBright, cardBright := m.fade(m.opts.Now())

	var left string
	if cardBright > 0 {
		left = renderCard(m.anim, cardBright)
	} else {
		level := 0.0
		if m.recording {
			level = m.level
		}
		left = renderOrb(m.frame, level, m.recording, orbBright)
	}
	for _, line := range m.statusLines() {
		left += line + "\n"
	}

	leftLines := strings.Split(left, "\n")
	padded := make([]string, m.height)
	for i := range padded {
		if i < len(leftLines) {
			padded[i] = leftLines[i]
		} else {
			padded[i] = strings.Repeat(" ", leftWidth-1)
		}
	}

	rightWidth := max(m.width-leftWidth, 20)
	leftPanel := lipgloss.NewStyle().Width(leftWidth - 1).Height(m.height).Render(strings.Join(padded, "\n"))
	rightPanel := lipgloss.NewStyle().Width(rightWidth).Height(m.height).PaddingLeft(1).Render(m.answerPanel(rightWidth))
	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

// wrapText breaks text at spaces so no line is wider than width runes.
func wrapText(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	width = max(width, 1)

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		r := []rune(para)
		for len(r) > width {
			split := width
			for i := width; i > 0; i-- {
				if r[i] == ' ' {
					split = i
					break
				}
			}
			lines = append(lines, string(r[:split]))
			r = []rune(strings.TrimLeft(string(r[split:]), " "))
		}
		lines = append(lines, string(r))
	}
	return lines
}
