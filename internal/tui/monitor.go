package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kelsos/weave-sweep/internal/models"
	"github.com/kelsos/weave-sweep/internal/services"
)

type AccountStatus struct {
	Ref       services.AccountRef
	Stage     services.Stage
	Message   string
	Outcome   models.Outcome
	StartTime time.Time
	Duration  time.Duration
}

type Model struct {
	order        []string
	statuses     map[string]*AccountStatus
	logs         []string
	spinner      spinner.Model
	progress     progress.Model
	width        int
	height       int
	quit         bool
	done         bool
	sweptCount   int
	skippedCount int
	errorCount   int
}

type AccountsLoaded struct {
	Accounts []services.AccountRef
}

type StageUpdate struct {
	Ref     services.AccountRef
	Stage   services.Stage
	Message string
}

type AccountFinished struct {
	Entry models.ReportEntry
}

type LogMessage struct {
	Message string
}

type RunFinished struct{}

func NewModel() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	pr := progress.New(progress.WithDefaultGradient())

	return Model{
		order:    []string{},
		statuses: make(map[string]*AccountStatus),
		logs:     []string{},
		spinner:  sp,
		progress: pr,
		width:    80,
		height:   24,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 40

	case AccountsLoaded:
		m = m.handleAccountsLoaded(msg)

	case StageUpdate:
		m = m.handleStageUpdate(msg)

	case AccountFinished:
		m = m.handleAccountFinished(msg)

	case LogMessage:
		m = m.appendLog(msg.Message)

	case RunFinished:
		m.done = true

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		if progressModel, ok := progressModel.(progress.Model); ok {
			m.progress = progressModel
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleAccountsLoaded(msg AccountsLoaded) Model {
	for _, ref := range msg.Accounts {
		key := ref.Key()
		if _, exists := m.statuses[key]; exists {
			continue
		}
		m.order = append(m.order, key)
		m.statuses[key] = &AccountStatus{Ref: ref, Stage: services.StageQueued}
	}
	return m.appendLog(fmt.Sprintf("Found %d addresses to process", len(msg.Accounts)))
}

func (m Model) handleStageUpdate(msg StageUpdate) Model {
	status, exists := m.statuses[msg.Ref.Key()]
	if !exists {
		return m
	}
	if status.StartTime.IsZero() {
		status.StartTime = time.Now()
	}
	status.Stage = msg.Stage
	status.Message = msg.Message
	return m
}

func (m Model) handleAccountFinished(msg AccountFinished) Model {
	e := msg.Entry
	key := services.AccountRef{Family: e.Family, Address: e.Address}.Key()
	status, exists := m.statuses[key]
	if !exists {
		return m
	}

	status.Stage = services.StageDone
	status.Outcome = e.Outcome
	if !status.StartTime.IsZero() {
		status.Duration = time.Since(status.StartTime)
	}

	switch e.Outcome {
	case models.OutcomeSwept, models.OutcomePlanned:
		m.sweptCount++
		status.Message = fmt.Sprintf("%s %s", e.Amount, e.Denom)
		if e.Hash != "" {
			status.Message += " tx " + truncate(e.Hash, 16)
		}
		m = m.appendLog(fmt.Sprintf("✅ %s: %s", e.Name, status.Message))
	case models.OutcomeSkipped:
		m.skippedCount++
		status.Message = e.Reason
	case models.OutcomeFailed:
		m.errorCount++
		status.Message = e.Error
		m = m.appendLog(fmt.Sprintf("❌ %s: %s", e.Name, e.Error))
	}
	return m
}

func (m Model) appendLog(message string) Model {
	m.logs = append(m.logs, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), message))
	if len(m.logs) > 10 {
		m.logs = m.logs[len(m.logs)-10:]
	}
	return m
}

func (m Model) completed() int {
	n := 0
	for _, status := range m.statuses {
		if status.Stage == services.StageDone {
			n++
		}
	}
	return n
}

func (m Model) View() string {
	if m.quit {
		return "Shutting down...\n"
	}

	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		MarginBottom(1)

	s.WriteString(headerStyle.Render("⛽ Gas Station Sweep"))
	s.WriteString("\n\n")

	summaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	summary := fmt.Sprintf("Addresses: %d | ✅ Swept: %d | ⏭ Skipped: %d | ❌ Errors: %d",
		len(m.order), m.sweptCount, m.skippedCount, m.errorCount)
	s.WriteString(summaryStyle.Render(summary))
	s.WriteString("\n")

	ratio := 0.0
	if len(m.order) > 0 {
		ratio = float64(m.completed()) / float64(len(m.order))
	}
	s.WriteString(m.progress.ViewAs(ratio))
	s.WriteString("\n\n")

	sectionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1).
		Width(m.width - 2)

	var accounts strings.Builder
	accounts.WriteString("📊 Accounts\n")
	accounts.WriteString(strings.Repeat("─", 60) + "\n")

	for _, key := range m.order {
		status := m.statuses[key]

		indicator := getStageIcon(status)
		if status.Stage != services.StageQueued && status.Stage != services.StageDone {
			indicator = m.spinner.View()
		}

		line := fmt.Sprintf("%s %-9s %-20s %-13s",
			indicator,
			status.Ref.Family,
			truncate(status.Ref.Name, 20),
			status.Stage)

		if status.Message != "" {
			line += " " + status.Message
		}

		style := lipgloss.NewStyle().Foreground(lipgloss.Color(getStageColor(status)))
		accounts.WriteString(style.Render(line) + "\n")
	}

	s.WriteString(sectionStyle.Render(accounts.String()))
	s.WriteString("\n\n")

	logSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(m.width - 2).
		Height(8)

	var logSection strings.Builder
	logSection.WriteString("📝 Recent Logs\n")
	for _, log := range m.logs {
		logSection.WriteString(log + "\n")
	}

	s.WriteString(logSectionStyle.Render(logSection.String()))
	s.WriteString("\n\n")

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	footer := "Press 'q' to quit | Logs: logs/weave-sweep_*.log"
	if m.done {
		footer = "Run finished. Press 'q' to quit | Logs: logs/weave-sweep_*.log"
	}
	s.WriteString(footerStyle.Render(footer))

	return s.String()
}

func getStageIcon(status *AccountStatus) string {
	if status.Stage == services.StageQueued {
		return "⏸"
	}
	switch status.Outcome {
	case models.OutcomeSwept, models.OutcomePlanned:
		return "✅"
	case models.OutcomeSkipped:
		return "⏭"
	case models.OutcomeFailed:
		return "❌"
	default:
		return "❓"
	}
}

func getStageColor(status *AccountStatus) string {
	switch {
	case status.Stage == services.StageQueued:
		return "244"
	case status.Outcome == models.OutcomeFailed:
		return "196"
	case status.Stage == services.StageDone:
		return "82"
	default:
		return "39"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
