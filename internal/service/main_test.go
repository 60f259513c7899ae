package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	v1 "github.com/emrgen/revision/apis/v1"
	"github.com/emrgen/revision/internal/cache"
	"github.com/emrgen/revision/internal/compress"
	"github.com/emrgen/revision/internal/model"
	"github.com/emrgen/revision/internal/queue"
	"github.com/emrgen/revision/internal/store"
	"github.com/emrgen/revision/internal/tester"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fixture struct {
	versions  *VersionService
	proposals *ProposalService
	store     *store.GormStore
	cache     *cache.Memory
	queue     *queue.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := store.NewGormStore(tester.TestDB(t))
	c := cache.NewMemory(time.Minute)
	q := queue.NewMemory(64)
	t.Cleanup(q.Close)

	return &fixture{
		versions:  NewVersionService(compress.NewGZip(), s, c, q),
		proposals: NewProposalService(s),
		store:     s,
		cache:     c,
		queue:     q,
	}
}

// proposal registers a proposal with the given forms.
func (f *fixture) proposal(t *testing.T, id string, forms ...string) {
	t.Helper()

	_, err := f.proposals.CreateProposal(context.TODO(), &v1.CreateProposalRequest{ID: id, Title: "Proposal " + id})
	require.NoError(t, err)

	for _, form := range forms {
		_, err := f.proposals.CreateForm(context.TODO(), id, &v1.CreateFormRequest{ID: form, Name: form})
		require.NoError(t, err)
	}
}

func (f *fixture) save(t *testing.T, scope model.Scope, content string) *v1.VersionRecord {
	t.Helper()

	res, err := f.versions.SaveVersion(context.TODO(), scope, User{ID: "u-1", Name: "Ada"}, &v1.SaveVersionRequest{
		Content: json.RawMessage(content),
	})
	require.NoError(t, err)

	return res.Version
}

func versionNumbers(records []*v1.VersionRecord) []int64 {
	numbers := make([]int64, 0, len(records))
	for _, record := range records {
		numbers = append(numbers, record.VersionNumber)
	}
	return numbers
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()

	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok, "expected a status error, got %v", err)
	require.Equal(t, code, st.Code(), st.Message())
}
