package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kelsos/weave-sweep/internal/models"
	"github.com/kelsos/weave-sweep/internal/services"
)

// SweepMonitor renders a consolidation run and receives its progress as a
// services.Observer
type SweepMonitor struct {
	program *tea.Program
}

func NewSweepMonitor() *SweepMonitor {
	return &SweepMonitor{
		program: tea.NewProgram(NewModel(), tea.WithAltScreen()),
	}
}

func (sm *SweepMonitor) AccountsLoaded(accounts []services.AccountRef) {
	sm.program.Send(AccountsLoaded{Accounts: accounts})
}

func (sm *SweepMonitor) StageChanged(account services.AccountRef, stage services.Stage, message string) {
	sm.program.Send(StageUpdate{Ref: account, Stage: stage, Message: message})
}

func (sm *SweepMonitor) Finished(entry models.ReportEntry) {
	sm.program.Send(AccountFinished{Entry: entry})
}

func (sm *SweepMonitor) AddLog(message string) {
	sm.program.Send(LogMessage{Message: message})
}

// Run executes work in the background while the TUI is shown. The TUI stays
// open after work finishes until the user quits; quitting early cancels work.
func (sm *SweepMonitor) Run(ctx context.Context, work func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		err := work(ctx)
		if err != nil {
			sm.AddLog(fmt.Sprintf("❌ Fatal error: %v", err))
		}
		sm.program.Send(RunFinished{})
		errCh <- err
	}()

	if _, err := sm.program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	cancel()
	return <-errCh
}
