package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrImmutableVersion is returned by the gorm hooks when something tries to
// rewrite or remove a stored version.
var ErrImmutableVersion = errors.New("versions are immutable once created")

type ScopeType string

const (
	ScopeProposal ScopeType = "PROPOSAL"
	ScopeForm     ScopeType = "FORM"
)

type VersionType string

const (
	VersionSnapshot    VersionType = "SNAPSHOT"
	VersionIncremental VersionType = "INCREMENTAL"
)

func (v VersionType) Valid() bool {
	return v == VersionSnapshot || v == VersionIncremental
}

const (
	ChangeManualEdit = "manual_edit"
	ChangeRollback   = "rollback"
)

// Version is one immutable entry in the history of a proposal or of a form
// within a proposal. FormID is empty for proposal scope.
type Version struct {
	ID            string      `gorm:"primaryKey;type:varchar(36);not null"`
	ProposalID    string      `gorm:"type:varchar(64);not null;uniqueIndex:idx_versions_scope_number,priority:1;index:idx_versions_proposal"`
	FormID        string      `gorm:"type:varchar(64);not null;default:'';uniqueIndex:idx_versions_scope_number,priority:2"`
	VersionNumber int64       `gorm:"not null;uniqueIndex:idx_versions_scope_number,priority:3"`
	ScopeType     ScopeType   `gorm:"type:varchar(16);not null"`
	VersionType   VersionType `gorm:"type:varchar(16);not null"`
	ChangeType    string      `gorm:"type:varchar(64);not null"`
	Comment       string
	Content       []byte
	Compression   string `gorm:"type:varchar(16)"` // codec used to encode Content
	ContentSize   int64  // raw content size in bytes
	StoredSize    int64  // encoded content size in bytes
	Metadata      datatypes.JSON
	CreatedByID   string    `gorm:"type:varchar(64)"`
	CreatedByName string    `gorm:"type:varchar(255)"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

func (Version) TableName() string {
	return "versions"
}

// Scope returns the scope the version belongs to.
func (v *Version) Scope() Scope {
	return Scope{ProposalID: v.ProposalID, FormID: v.FormID}
}

func (v *Version) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableVersion
}

func (v *Version) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableVersion
}

// VersionMetadata is the structured part of Version.Metadata the service
// understands. Unknown keys supplied by clients are kept as they are.
type VersionMetadata struct {
	WordCountDelta *int64 `json:"wordCountDelta,omitempty"`
	RolledBackFrom *int64 `json:"rolledBackFrom,omitempty"`
}

// VersionStats is the proposal level rollup over all scopes of a proposal.
type VersionStats struct {
	TotalVersions int64
	ContentSize   int64
	StoredSize    int64
}

// CompressionRatio reports storage savings as a percentage.
func (s VersionStats) CompressionRatio() float64 {
	if s.ContentSize <= 0 {
		return 0
	}

	return (1 - float64(s.StoredSize)/float64(s.ContentSize)) * 100
}
