package model

import "time"

// Proposal registers a proposal scope. The proposal body itself lives in its
// versions.
type Proposal struct {
	ID        string `gorm:"primaryKey;type:varchar(64);not null"`
	Title     string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Proposal) TableName() string {
	return "proposals"
}

// Form is a form that belongs to a proposal and carries its own history.
type Form struct {
	ProposalID string `gorm:"primaryKey;type:varchar(64);not null;index:idx_forms_proposal"`
	ID         string `gorm:"primaryKey;type:varchar(64);not null"`
	Name       string `gorm:"not null"`
	CreatedAt  time.Time
}

func (Form) TableName() string {
	return "forms"
}
