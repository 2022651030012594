package services

import "github.com/kelsos/weave-sweep/internal/models"

type Stage string

const (
	StageQueued       Stage = "queued"
	StageFetching     Stage = "fetching"
	StagePlanning     Stage = "planning"
	StageBroadcasting Stage = "broadcasting"
	StageDone         Stage = "done"
)

// AccountRef identifies one address within its chain family
type AccountRef struct {
	Family  models.ChainFamily
	Name    string
	Address string
}

func (r AccountRef) Key() string {
	return string(r.Family) + ":" + r.Address
}

// Observer receives progress of a consolidation run
type Observer interface {
	AccountsLoaded(accounts []AccountRef)
	StageChanged(account AccountRef, stage Stage, message string)
	Finished(entry models.ReportEntry)
}

type noopObserver struct{}

func (noopObserver) AccountsLoaded([]AccountRef) {}
func (noopObserver) StageChanged(AccountRef, Stage, string) {}
func (noopObserver) Finished(models.ReportEntry) {}
