package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	v1 "github.com/emrgen/revision/apis/v1"
	"github.com/emrgen/revision/internal/cache"
	"github.com/emrgen/revision/internal/compress"
	"github.com/emrgen/revision/internal/metrics"
	"github.com/emrgen/revision/internal/model"
	"github.com/emrgen/revision/internal/queue"
	"github.com/emrgen/revision/internal/store"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/datatypes"
)

const (
	// MaxListLimit caps the number of versions returned by one list call.
	MaxListLimit = 200
	// DefaultMaxRetries is how many times an append is retried after a
	// version number conflict.
	DefaultMaxRetries = 5
)

// User is the author recorded on a version.
type User struct {
	ID   string
	Name string
}

// SystemUser is recorded when a request carries no identity.
var SystemUser = User{ID: "system", Name: "System"}

type Option func(*VersionService)

// WithMaxRetries sets how many times a conflicting append is retried.
func WithMaxRetries(n uint64) Option {
	return func(s *VersionService) {
		s.maxRetries = n
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *VersionService) {
		s.metrics = m
	}
}

// NewVersionService creates a new VersionService.
func NewVersionService(compress compress.Compress, store store.Store, cache cache.StatsCache, queue queue.VersionQueue, opts ...Option) *VersionService {
	service := &VersionService{
		compress:   compress,
		store:      store,
		cache:      cache,
		queue:      queue,
		maxRetries: DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// VersionService records, lists and rolls back proposal and form versions.
type VersionService struct {
	compress   compress.Compress
	store      store.Store
	cache      cache.StatsCache
	queue      queue.VersionQueue
	metrics    *metrics.Metrics
	maxRetries uint64
}

// SaveVersion appends the content of a normal edit as the next version of
// the scope.
func (d *VersionService) SaveVersion(ctx context.Context, scope model.Scope, user User, request *v1.SaveVersionRequest) (*v1.SaveVersionResponse, error) {
	if !json.Valid(request.Content) {
		return nil, toStatus(ErrInvalidContent)
	}

	versionType := model.VersionType(request.VersionType)
	if versionType == "" {
		versionType = model.VersionSnapshot
	}
	if !versionType.Valid() {
		return nil, toStatus(ErrInvalidVersionType)
	}

	changeType := request.ChangeType
	if changeType == "" {
		changeType = model.ChangeManualEdit
	}

	var created *model.Version
	err := d.append(ctx, func(tx store.Store) error {
		if err := checkScope(ctx, tx, scope); err != nil {
			return err
		}

		meta := make(map[string]any, len(request.Metadata)+1)
		for k, v := range request.Metadata {
			meta[k] = v
		}
		if _, ok := meta["wordCountDelta"]; !ok {
			delta, err := d.wordCountDelta(ctx, tx, scope, request.Content)
			if err != nil {
				return err
			}
			meta["wordCountDelta"] = delta
		}

		version, err := d.newVersion(scope, user, request.Content, meta)
		if err != nil {
			return err
		}
		version.VersionType = versionType
		version.ChangeType = changeType
		version.Comment = request.Comment

		if err := tx.AppendVersion(ctx, version); err != nil {
			return err
		}

		created = version
		return nil
	})
	if err != nil {
		return nil, toStatus(err)
	}

	logrus.Infof("saved version %d of %s", created.VersionNumber, scope)
	d.afterAppend(ctx, created)

	record, err := d.record(created, true)
	if err != nil {
		return nil, toStatus(err)
	}

	return &v1.SaveVersionResponse{Version: record}, nil
}

// ListVersions lists the versions of a scope, newest first, without content.
func (d *VersionService) ListVersions(ctx context.Context, scope model.Scope, limit int) (*v1.ListVersionsResponse, error) {
	if limit <= 0 {
		return nil, toStatus(ErrInvalidLimit)
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	if err := checkScope(ctx, d.store, scope); err != nil {
		return nil, toStatus(err)
	}

	versions, err := d.store.ListVersions(ctx, scope, limit)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &v1.ListVersionsResponse{
		Versions: make([]*v1.VersionRecord, 0, len(versions)),
	}
	for _, version := range versions {
		record, err := d.record(version, false)
		if err != nil {
			return nil, toStatus(err)
		}
		resp.Versions = append(resp.Versions, record)
	}

	return resp, nil
}

// GetVersion retrieves one version of a scope, with its content.
func (d *VersionService) GetVersion(ctx context.Context, scope model.Scope, number int64) (*v1.GetVersionResponse, error) {
	if err := checkScope(ctx, d.store, scope); err != nil {
		return nil, toStatus(err)
	}

	version, err := d.store.GetVersion(ctx, scope, number)
	if errors.Is(err, store.ErrVersionNotFound) {
		return nil, status.Errorf(codes.NotFound, "version %d not found for %s", number, scope)
	}
	if err != nil {
		return nil, toStatus(err)
	}

	record, err := d.record(version, true)
	if err != nil {
		return nil, toStatus(err)
	}

	return &v1.GetVersionResponse{Version: record}, nil
}

// GetCurrentContent returns the content of the current version of a scope.
func (d *VersionService) GetCurrentContent(ctx context.Context, scope model.Scope) (*v1.CurrentContentResponse, error) {
	if err := checkScope(ctx, d.store, scope); err != nil {
		return nil, toStatus(err)
	}

	head, err := d.store.LatestVersion(ctx, scope)
	if err != nil {
		return nil, toStatus(err)
	}
	if head == nil {
		return &v1.CurrentContentResponse{}, nil
	}

	content, err := d.decode(head)
	if err != nil {
		return nil, toStatus(err)
	}

	return &v1.CurrentContentResponse{
		VersionNumber: head.VersionNumber,
		Content:       content,
	}, nil
}

// GetVersionStats returns the version rollup of a proposal across the
// proposal scope and all its forms.
func (d *VersionService) GetVersionStats(ctx context.Context, proposalID string) (*v1.VersionStatsResponse, error) {
	stats, err := d.versionStats(ctx, proposalID)
	if err != nil {
		d.metrics.StatsFailure()
		logrus.Errorf("error loading version stats of proposal %s: %v", proposalID, err)
		return nil, toStatus(err)
	}

	return &v1.VersionStatsResponse{
		Stats: &v1.VersionStats{
			TotalVersions:    stats.TotalVersions,
			CompressionRatio: stats.CompressionRatio(),
		},
	}, nil
}

func (d *VersionService) versionStats(ctx context.Context, proposalID string) (*model.VersionStats, error) {
	if _, err := d.store.GetProposal(ctx, proposalID); err != nil {
		return nil, err
	}

	stats, err := d.cache.GetStats(ctx, proposalID)
	if err == nil {
		return stats, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logrus.Warnf("stats cache unavailable: %v", err)
	}

	return d.RefreshStats(ctx, proposalID)
}

// RefreshStats recomputes the stats of a proposal from the store and caches
// them.
func (d *VersionService) RefreshStats(ctx context.Context, proposalID string) (*model.VersionStats, error) {
	stats, err := d.store.VersionStats(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	if err := d.cache.SetStats(ctx, proposalID, stats); err != nil {
		logrus.Warnf("error caching version stats of proposal %s: %v", proposalID, err)
	}

	return stats, nil
}

// Rollback restores the content of version number as a new version of the
// scope. The target and every other existing version stay untouched.
func (d *VersionService) Rollback(ctx context.Context, scope model.Scope, number int64, user User) (*v1.RollbackResponse, error) {
	var created *model.Version
	err := d.append(ctx, func(tx store.Store) error {
		if err := checkScope(ctx, tx, scope); err != nil {
			return err
		}

		target, err := tx.GetVersion(ctx, scope, number)
		if errors.Is(err, store.ErrVersionNotFound) {
			return status.Errorf(codes.NotFound, "version %d not found for %s", number, scope)
		}
		if err != nil {
			return err
		}

		// decode into a fresh buffer, the new version never shares storage
		// with the target
		content, err := d.decode(target)
		if err != nil {
			return err
		}

		delta, err := d.wordCountDelta(ctx, tx, scope, content)
		if err != nil {
			return err
		}

		version, err := d.newVersion(scope, user, content, map[string]any{
			"wordCountDelta": delta,
			"rolledBackFrom": target.VersionNumber,
		})
		if err != nil {
			return err
		}
		version.VersionType = model.VersionSnapshot
		version.ChangeType = model.ChangeRollback
		version.Comment = fmt.Sprintf("Rolled back to version %d", target.VersionNumber)

		if err := tx.AppendVersion(ctx, version); err != nil {
			return err
		}

		created = version
		return nil
	})
	if err != nil {
		d.metrics.Rollback("failed")
		logrus.Errorf("rollback of %s to version %d failed: %v", scope, number, err)
		return nil, toStatus(err)
	}

	d.metrics.Rollback("ok")
	logrus.Infof("rolled back %s to version %d as version %d", scope, number, created.VersionNumber)
	d.afterAppend(ctx, created)

	return &v1.RollbackResponse{NewVersion: created.VersionNumber}, nil
}

// append runs f in a transaction, retrying on version number conflicts.
func (d *VersionService) append(ctx context.Context, f func(tx store.Store) error) error {
	err := store.RetryAppend(ctx, d.store, d.maxRetries, f)
	if errors.Is(err, store.ErrVersionConflict) {
		d.metrics.AppendConflict()
	}

	return err
}

// afterAppend runs the side effects of a committed append. Failures are
// logged, the version is already stored.
func (d *VersionService) afterAppend(ctx context.Context, version *model.Version) {
	d.metrics.VersionAppended(string(version.ScopeType), version.ChangeType)

	if err := d.cache.InvalidateStats(ctx, version.ProposalID); err != nil {
		logrus.Warnf("error invalidating version stats of proposal %s: %v", version.ProposalID, err)
	}

	if err := d.queue.PublishVersionCreated(ctx, version); err != nil {
		logrus.Errorf("error publishing version %d of %s: %v", version.VersionNumber, version.Scope(), err)
	}
}

func (d *VersionService) newVersion(scope model.Scope, user User, content []byte, meta map[string]any) (*model.Version, error) {
	encoded, err := d.compress.Encode(content)
	if err != nil {
		return nil, err
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	if user.ID == "" {
		user = SystemUser
	}

	return &model.Version{
		ProposalID:    scope.ProposalID,
		FormID:        scope.FormID,
		ScopeType:     scope.Type(),
		Content:       encoded,
		Compression:   d.compress.Name(),
		ContentSize:   int64(len(content)),
		StoredSize:    int64(len(encoded)),
		Metadata:      datatypes.JSON(metaData),
		CreatedByID:   user.ID,
		CreatedByName: user.Name,
	}, nil
}

func (d *VersionService) wordCountDelta(ctx context.Context, tx store.Store, scope model.Scope, content []byte) (int64, error) {
	head, err := tx.LatestVersion(ctx, scope)
	if err != nil {
		return 0, err
	}

	var previous int64
	if head != nil {
		headContent, err := d.decode(head)
		if err != nil {
			return 0, err
		}
		previous = countWords(headContent)
	}

	return countWords(content) - previous, nil
}

// decode returns the raw content of a version using the codec it was stored
// with.
func (d *VersionService) decode(version *model.Version) ([]byte, error) {
	codec, err := compress.Lookup(version.Compression)
	if err != nil {
		return nil, err
	}

	return codec.Decode(version.Content)
}

func (d *VersionService) record(version *model.Version, withContent bool) (*v1.VersionRecord, error) {
	record := &v1.VersionRecord{
		ID:            version.ID,
		ScopeType:     string(version.ScopeType),
		ProposalID:    version.ProposalID,
		FormID:        version.FormID,
		VersionNumber: version.VersionNumber,
		VersionType:   string(version.VersionType),
		ChangeType:    version.ChangeType,
		Comment:       version.Comment,
		CreatedBy: v1.CreatedBy{
			ID:   version.CreatedByID,
			Name: version.CreatedByName,
		},
		CreatedAt: version.CreatedAt,
	}

	if len(version.Metadata) > 0 {
		meta := make(map[string]any)
		if err := json.Unmarshal(version.Metadata, &meta); err != nil {
			return nil, err
		}
		record.Metadata = meta
	}

	if withContent {
		content, err := d.decode(version)
		if err != nil {
			return nil, err
		}
		record.Content = content
	}

	return record, nil
}

// checkScope makes sure the proposal, and the form when the scope has one,
// exist.
func checkScope(ctx context.Context, s store.Store, scope model.Scope) error {
	if scope.ProposalID == "" {
		return ErrMissingID
	}

	if _, err := s.GetProposal(ctx, scope.ProposalID); err != nil {
		return err
	}

	if scope.FormID != "" {
		if _, err := s.GetForm(ctx, scope.ProposalID, scope.FormID); err != nil {
			return err
		}
	}

	return nil
}
