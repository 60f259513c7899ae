package model

import "fmt"

// Scope identifies a version sequence: a whole proposal, or one form inside it.
type Scope struct {
	ProposalID string
	FormID     string
}

func ProposalScope(proposalID string) Scope {
	return Scope{ProposalID: proposalID}
}

func FormScope(proposalID, formID string) Scope {
	return Scope{ProposalID: proposalID, FormID: formID}
}

func (s Scope) Type() ScopeType {
	if s.FormID == "" {
		return ScopeProposal
	}

	return ScopeForm
}

// Key is a stable string form of the scope, used for cache keys, event keys
// and in-process locks.
func (s Scope) Key() string {
	if s.FormID == "" {
		return s.ProposalID
	}

	return s.ProposalID + "/" + s.FormID
}

func (s Scope) String() string {
	if s.FormID == "" {
		return fmt.Sprintf("proposal %s", s.ProposalID)
	}

	return fmt.Sprintf("proposal %s form %s", s.ProposalID, s.FormID)
}
