package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/emrgen/revision/internal/model"
)

const EventVersionCreated = "version.created"

// VersionEvent is published after a version has been committed.
type VersionEvent struct {
	Type          string    `json:"type"`
	ID            string    `json:"id"`
	ProposalID    string    `json:"proposalId"`
	FormID        string    `json:"formId,omitempty"`
	ScopeType     string    `json:"scopeType"`
	VersionNumber int64     `json:"versionNumber"`
	ChangeType    string    `json:"changeType"`
	CreatedBy     string    `json:"createdBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func NewVersionEvent(v *model.Version) *VersionEvent {
	return &VersionEvent{
		Type:          EventVersionCreated,
		ID:            v.ID,
		ProposalID:    v.ProposalID,
		FormID:        v.FormID,
		ScopeType:     string(v.ScopeType),
		VersionNumber: v.VersionNumber,
		ChangeType:    v.ChangeType,
		CreatedBy:     v.CreatedByID,
		CreatedAt:     v.CreatedAt,
	}
}

func (e *VersionEvent) Key() string {
	return model.FormScope(e.ProposalID, e.FormID).Key()
}

func (e *VersionEvent) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// VersionQueue carries version events to downstream consumers.
type VersionQueue interface {
	// PublishVersionCreated announces a newly appended version.
	PublishVersionCreated(ctx context.Context, v *model.Version) error
	Close()
}

var _ VersionQueue = (*Nop)(nil)

type Nop struct{}

func NewNop() *Nop {
	return &Nop{}
}

func (n *Nop) PublishVersionCreated(ctx context.Context, v *model.Version) error {
	return nil
}

func (n *Nop) Close() {}
