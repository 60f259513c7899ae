package store

import (
	"context"
	"errors"
	"time"

	"github.com/emrgen/revision/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// postgres unique_violation
const pgUniqueViolation = "23505"

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:  db,
		now: time.Now,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func (g *GormStore) CreateProposal(ctx context.Context, proposal *model.Proposal) error {
	err := g.db.WithContext(ctx).Create(proposal).Error
	if isDuplicateKey(err) {
		return ErrProposalExists
	}

	return err
}

func (g *GormStore) GetProposal(ctx context.Context, id string) (*model.Proposal, error) {
	var proposal model.Proposal
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&proposal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProposalNotFound
	}
	if err != nil {
		return nil, err
	}

	return &proposal, nil
}

func (g *GormStore) CreateForm(ctx context.Context, form *model.Form) error {
	if _, err := g.GetProposal(ctx, form.ProposalID); err != nil {
		return err
	}

	err := g.db.WithContext(ctx).Create(form).Error
	if isDuplicateKey(err) {
		return ErrFormExists
	}

	return err
}

func (g *GormStore) GetForm(ctx context.Context, proposalID, formID string) (*model.Form, error) {
	var form model.Form
	err := g.db.WithContext(ctx).Where("proposal_id = ? AND id = ?", proposalID, formID).First(&form).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFormNotFound
	}
	if err != nil {
		return nil, err
	}

	return &form, nil
}

func (g *GormStore) ListForms(ctx context.Context, proposalID string) ([]*model.Form, error) {
	var forms []*model.Form
	err := g.db.WithContext(ctx).Where("proposal_id = ?", proposalID).Order("created_at asc").Find(&forms).Error
	return forms, err
}

// AppendVersion inserts v as the next version of its scope. It reads the
// current head and inserts inside one transaction; a concurrent writer that
// wins the same number surfaces as ErrVersionConflict, see RetryAppend.
func (g *GormStore) AppendVersion(ctx context.Context, v *model.Version) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var head []*model.Version
		err := tx.Where("proposal_id = ? AND form_id = ?", v.ProposalID, v.FormID).
			Order("version_number desc").
			Limit(1).
			Find(&head).Error
		if err != nil {
			return err
		}

		createdAt := g.now().UTC()
		v.VersionNumber = 1
		if len(head) == 1 {
			v.VersionNumber = head[0].VersionNumber + 1
			// keep createdAt non-decreasing along the version order
			if head[0].CreatedAt.After(createdAt) {
				createdAt = head[0].CreatedAt
			}
		}

		v.ID = uuid.New().String()
		v.CreatedAt = createdAt
		v.ScopeType = v.Scope().Type()

		err = tx.Create(v).Error
		if isDuplicateKey(err) {
			logrus.Warnf("version %d of %s was taken by a concurrent writer", v.VersionNumber, v.Scope())
			return ErrVersionConflict
		}

		return err
	})
}

func (g *GormStore) GetVersion(ctx context.Context, scope model.Scope, number int64) (*model.Version, error) {
	var version model.Version
	err := g.db.WithContext(ctx).
		Where("proposal_id = ? AND form_id = ? AND version_number = ?", scope.ProposalID, scope.FormID, number).
		First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, err
	}

	return &version, nil
}

func (g *GormStore) LatestVersion(ctx context.Context, scope model.Scope) (*model.Version, error) {
	versions, err := g.ListVersions(ctx, scope, 1)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, nil
	}

	return versions[0], nil
}

func (g *GormStore) ListVersions(ctx context.Context, scope model.Scope, limit int) ([]*model.Version, error) {
	versions := make([]*model.Version, 0)
	err := g.db.WithContext(ctx).
		Where("proposal_id = ? AND form_id = ?", scope.ProposalID, scope.FormID).
		Order("version_number desc").
		Limit(limit).
		Find(&versions).Error
	if err != nil {
		return nil, err
	}

	return versions, nil
}

func (g *GormStore) ListVersionsAsc(ctx context.Context, scope model.Scope) ([]*model.Version, error) {
	versions := make([]*model.Version, 0)
	err := g.db.WithContext(ctx).
		Where("proposal_id = ? AND form_id = ?", scope.ProposalID, scope.FormID).
		Order("version_number asc").
		Find(&versions).Error
	if err != nil {
		return nil, err
	}

	return versions, nil
}

func (g *GormStore) VersionStats(ctx context.Context, proposalID string) (*model.VersionStats, error) {
	var stats model.VersionStats
	err := g.db.WithContext(ctx).
		Model(&model.Version{}).
		Select("count(*) as total_versions, coalesce(sum(content_size), 0) as content_size, coalesce(sum(stored_size), 0) as stored_size").
		Where("proposal_id = ?", proposalID).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

func (g *GormStore) ListScopes(ctx context.Context) ([]model.Scope, error) {
	var rows []struct {
		ProposalID string
		FormID     string
	}
	err := g.db.WithContext(ctx).
		Model(&model.Version{}).
		Distinct("proposal_id", "form_id").
		Order("proposal_id, form_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	scopes := make([]model.Scope, 0, len(rows))
	for _, row := range rows {
		scopes = append(scopes, model.Scope{ProposalID: row.ProposalID, FormID: row.FormID})
	}

	return scopes, nil
}

func (g *GormStore) ListProposalsChangedSince(ctx context.Context, since time.Time) ([]string, error) {
	ids := make([]string, 0)
	err := g.db.WithContext(ctx).
		Model(&model.Version{}).
		Where("created_at >= ?", since.UTC()).
		Distinct().
		Pluck("proposal_id", &ids).Error
	return ids, err
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx, now: g.now})
	})
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
