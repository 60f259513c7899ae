package store

import (
	"context"
	"errors"
	"time"

	"github.com/emrgen/revision/internal/model"
)

var (
	ErrProposalNotFound = errors.New("proposal not found")
	ErrProposalExists   = errors.New("proposal already exists")
	ErrFormNotFound     = errors.New("form not found")
	ErrFormExists       = errors.New("form already exists")
	ErrVersionNotFound  = errors.New("version not found")
	// ErrVersionConflict is returned when another writer took the version
	// number an append was about to use.
	ErrVersionConflict = errors.New("version number conflict")
)

type Store interface {
	ProposalStore
	VersionStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type ProposalStore interface {
	// CreateProposal registers a new proposal.
	CreateProposal(ctx context.Context, proposal *model.Proposal) error
	// GetProposal retrieves a proposal by ID.
	GetProposal(ctx context.Context, id string) (*model.Proposal, error)
	// CreateForm registers a new form under an existing proposal.
	CreateForm(ctx context.Context, form *model.Form) error
	// GetForm retrieves a form by proposal ID and form ID.
	GetForm(ctx context.Context, proposalID, formID string) (*model.Form, error)
	// ListForms lists the forms of a proposal.
	ListForms(ctx context.Context, proposalID string) ([]*model.Form, error)
}

type VersionStore interface {
	// AppendVersion assigns the next version number, id and creation time of
	// the scope to v and inserts it. It is the only write on versions.
	AppendVersion(ctx context.Context, v *model.Version) error
	// GetVersion retrieves a version by scope and number.
	GetVersion(ctx context.Context, scope model.Scope, number int64) (*model.Version, error)
	// LatestVersion retrieves the current version of a scope, nil when the
	// scope has no versions yet.
	LatestVersion(ctx context.Context, scope model.Scope) (*model.Version, error)
	// ListVersions lists at most limit versions of a scope, newest first.
	ListVersions(ctx context.Context, scope model.Scope, limit int) ([]*model.Version, error)
	// ListVersionsAsc lists every version of a scope, oldest first.
	ListVersionsAsc(ctx context.Context, scope model.Scope) ([]*model.Version, error)
	// VersionStats aggregates all versions of a proposal and its forms.
	VersionStats(ctx context.Context, proposalID string) (*model.VersionStats, error)
	// ListScopes lists every scope that has at least one version.
	ListScopes(ctx context.Context) ([]model.Scope, error)
	// ListProposalsChangedSince lists proposals with versions created at or after since.
	ListProposalsChangedSince(ctx context.Context, since time.Time) ([]string, error)
}
