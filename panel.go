package revision

import (
	"context"
	"errors"
	"fmt"

	v1 "github.com/emrgen/revision/apis/v1"
	"github.com/sirupsen/logrus"
)

// ErrRollbackDeclined is returned by HistoryPanel.Rollback when the user did
// not confirm the rollback. Nothing was changed.
var ErrRollbackDeclined = errors.New("rollback declined")

// Confirmer asks the user to confirm an action described by message.
type Confirmer interface {
	Confirm(message string) bool
}

// ConfirmFunc adapts a function to a Confirmer.
type ConfirmFunc func(message string) bool

func (f ConfirmFunc) Confirm(message string) bool {
	return f(message)
}

// RollbackConfirmation is the question asked before restoring a version.
func RollbackConfirmation(number int64) string {
	return fmt.Sprintf("Roll back to version %d? The current content is kept in the history as its own version and the restored content is saved as a new version.", number)
}

// HistoryPanel is the view state of the version history of one scope. It is
// refreshed by explicit queries after every mutation.
type HistoryPanel struct {
	client     *Client
	proposalID string
	formID     string
	limit      int

	Versions []*v1.VersionRecord
	// Stats is nil until loaded or when the stats could not be fetched.
	Stats   *v1.VersionStats
	Current *v1.CurrentContentResponse
	// Err is the last list failure. The panel shows it with a retry option.
	Err error
	// Alert is the last rollback failure.
	Alert error
}

// NewHistoryPanel creates the panel of a proposal, or of one of its forms
// when formID is set.
func NewHistoryPanel(client *Client, proposalID, formID string) *HistoryPanel {
	return &HistoryPanel{
		client:     client,
		proposalID: proposalID,
		formID:     formID,
		limit:      v1.DefaultListLimit,
	}
}

// ErrorMessage is the text shown in place of the list after a failed load.
func (p *HistoryPanel) ErrorMessage() string {
	if p.Err == nil {
		return ""
	}
	return "Error loading versions: " + p.Err.Error()
}

// Load fetches the version list, the stats and the current content. A list
// failure is kept in Err. Stats failures are logged and leave the list alone.
func (p *HistoryPanel) Load(ctx context.Context) error {
	if err := p.loadVersions(ctx); err != nil {
		return err
	}

	p.loadStats(ctx)

	current, err := p.client.GetCurrentContent(ctx, p.proposalID, p.formID)
	if err != nil {
		p.Err = err
		return err
	}
	p.Current = current

	return nil
}

// Retry reloads the panel after a failed load.
func (p *HistoryPanel) Retry(ctx context.Context) error {
	return p.Load(ctx)
}

func (p *HistoryPanel) loadVersions(ctx context.Context) error {
	versions, err := p.client.ListVersions(ctx, p.proposalID, p.formID, p.limit)
	if err != nil {
		p.Err = err
		return err
	}

	p.Err = nil
	p.Versions = versions
	return nil
}

func (p *HistoryPanel) loadStats(ctx context.Context) {
	stats, err := p.client.GetVersionStats(ctx, p.proposalID)
	if err != nil {
		logrus.Errorf("error fetching version stats of %s: %v", p.proposalID, err)
		return
	}
	p.Stats = stats
}

// Rollback asks for confirmation, restores version number and refreshes
// the list and the current content in place. It returns the new version
// number. When the rollback fails the error is kept in Alert and the panel
// state is left as it was.
func (p *HistoryPanel) Rollback(ctx context.Context, number int64, confirm Confirmer) (int64, error) {
	if !confirm.Confirm(RollbackConfirmation(number)) {
		return 0, ErrRollbackDeclined
	}

	newVersion, err := p.client.Rollback(ctx, p.proposalID, p.formID, number)
	if err != nil {
		p.Alert = err
		return 0, err
	}
	p.Alert = nil

	if err := p.loadVersions(ctx); err != nil {
		return newVersion, err
	}

	current, err := p.client.GetCurrentContent(ctx, p.proposalID, p.formID)
	if err != nil {
		p.Err = err
		return newVersion, err
	}
	p.Current = current

	p.loadStats(ctx)

	return newVersion, nil
}
