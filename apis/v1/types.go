// Package v1 holds the JSON types of the revision REST API. They are shared
// by the server and the Go client.
package v1

import (
	"encoding/json"
	"time"
)

// DefaultListLimit is the page size the history panel asks for.
const DefaultListLimit = 50

type CreatedBy struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// VersionRecord is one entry in the history of a proposal or form. Content
// is only filled when a single version is requested.
type VersionRecord struct {
	ID            string          `json:"_id"`
	ScopeType     string          `json:"scopeType"`
	ProposalID    string          `json:"proposalId"`
	FormID        string          `json:"formId,omitempty"`
	VersionNumber int64           `json:"versionNumber"`
	VersionType   string          `json:"versionType"`
	ChangeType    string          `json:"changeType"`
	Comment       string          `json:"comment,omitempty"`
	Content       json.RawMessage `json:"content,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	CreatedBy     CreatedBy       `json:"createdBy"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// WordCountDelta returns metadata.wordCountDelta when present.
func (v *VersionRecord) WordCountDelta() (int64, bool) {
	return metadataInt(v.Metadata, "wordCountDelta")
}

// RolledBackFrom returns the version a rollback restored, when present.
func (v *VersionRecord) RolledBackFrom() (int64, bool) {
	return metadataInt(v.Metadata, "rolledBackFrom")
}

func metadataInt(m map[string]any, key string) (int64, bool) {
	raw, ok := m[key]
	if !ok {
		return 0, false
	}

	switch n := raw.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}

	return 0, false
}

type VersionStats struct {
	TotalVersions    int64   `json:"totalVersions"`
	CompressionRatio float64 `json:"compressionRatio"`
}

type ListVersionsResponse struct {
	Versions []*VersionRecord `json:"versions"`
}

type GetVersionResponse struct {
	Version *VersionRecord `json:"version"`
}

type VersionStatsResponse struct {
	Stats *VersionStats `json:"stats"`
}

type RollbackResponse struct {
	NewVersion int64 `json:"newVersion"`
}

type SaveVersionRequest struct {
	Content     json.RawMessage `json:"content"`
	VersionType string          `json:"versionType,omitempty"`
	ChangeType  string          `json:"changeType,omitempty"`
	Comment     string          `json:"comment,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

type SaveVersionResponse struct {
	Version *VersionRecord `json:"version"`
}

// CurrentContentResponse carries the live content of a scope. An empty scope
// has VersionNumber 0 and a null content.
type CurrentContentResponse struct {
	VersionNumber int64           `json:"versionNumber"`
	Content       json.RawMessage `json:"content"`
}

type Proposal struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateProposalRequest struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
}

type CreateProposalResponse struct {
	Proposal *Proposal `json:"proposal"`
}

type Form struct {
	ID         string    `json:"id"`
	ProposalID string    `json:"proposalId"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
}

type CreateFormRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type CreateFormResponse struct {
	Form *Form `json:"form"`
}

type ListFormsResponse struct {
	Forms []*Form `json:"forms"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
