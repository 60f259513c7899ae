package service

import (
	"context"
	"strings"

	v1 "github.com/emrgen/revision/apis/v1"
	"github.com/emrgen/revision/internal/model"
	"github.com/emrgen/revision/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NewProposalService creates a new ProposalService.
func NewProposalService(store store.Store) *ProposalService {
	return &ProposalService{
		store: store,
	}
}

// ProposalService registers the proposals and forms versions belong to.
type ProposalService struct {
	store store.Store
}

// CreateProposal registers a proposal. A missing id is generated.
func (p *ProposalService) CreateProposal(ctx context.Context, request *v1.CreateProposalRequest) (*v1.CreateProposalResponse, error) {
	id := strings.TrimSpace(request.ID)
	if id == "" {
		id = uuid.New().String()
	}

	proposal := &model.Proposal{
		ID:    id,
		Title: request.Title,
	}
	if err := p.store.CreateProposal(ctx, proposal); err != nil {
		return nil, toStatus(err)
	}

	logrus.Infof("created proposal %s", proposal.ID)

	return &v1.CreateProposalResponse{
		Proposal: &v1.Proposal{
			ID:        proposal.ID,
			Title:     proposal.Title,
			CreatedAt: proposal.CreatedAt,
		},
	}, nil
}

// CreateForm registers a form under an existing proposal. A missing id is
// generated.
func (p *ProposalService) CreateForm(ctx context.Context, proposalID string, request *v1.CreateFormRequest) (*v1.CreateFormResponse, error) {
	if proposalID == "" {
		return nil, toStatus(ErrMissingID)
	}

	id := strings.TrimSpace(request.ID)
	if id == "" {
		id = uuid.New().String()
	}

	form := &model.Form{
		ProposalID: proposalID,
		ID:         id,
		Name:       request.Name,
	}
	if err := p.store.CreateForm(ctx, form); err != nil {
		return nil, toStatus(err)
	}

	logrus.Infof("created form %s of proposal %s", form.ID, form.ProposalID)

	return &v1.CreateFormResponse{Form: formProto(form)}, nil
}

// ListForms lists the forms of a proposal.
func (p *ProposalService) ListForms(ctx context.Context, proposalID string) (*v1.ListFormsResponse, error) {
	if _, err := p.store.GetProposal(ctx, proposalID); err != nil {
		return nil, toStatus(err)
	}

	forms, err := p.store.ListForms(ctx, proposalID)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &v1.ListFormsResponse{Forms: make([]*v1.Form, 0, len(forms))}
	for _, form := range forms {
		resp.Forms = append(resp.Forms, formProto(form))
	}

	return resp, nil
}

func formProto(form *model.Form) *v1.Form {
	return &v1.Form{
		ID:         form.ID,
		ProposalID: form.ProposalID,
		Name:       form.Name,
		CreatedAt:  form.CreatedAt,
	}
}
