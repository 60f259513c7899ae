package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"

	v1 "github.com/emrgen/revision/apis/v1"
	"github.com/emrgen/revision/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestVersionService_RollbackCreatesNewVersion(t *testing.T) {
	f := newFixture(t)
	f.proposal(t, "p-1", "budget")
	scope := model.FormScope("p-1", "budget")

	f.save(t, scope, `{"total":"one"}`)
	f.save(t, scope, `{"total":"one two"}`)
	f.save(t, scope, `{"total":"one two three"}`)

	before, err := f.versions.GetVersion(context.TODO(), scope, 2)
	require.NoError(t, err)

	res, err := f.versions.Rollback(context.TODO(), scope, 2, User{ID: "u-2", Name: "Grace"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.NewVersion)

	list, err := f.versions.ListVersions(context.TODO(), scope, v1.DefaultListLimit)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 3, 2, 1}, versionNumbers(list.Versions))

	latest, err := f.versions.GetVersion(context.TODO(), scope, 4)
	require.NoError(t, err)
	assert.JSONEq(t, string(before.Version.Content), string(latest.Version.Content))
	assert.Equal(t, model.ChangeRollback, latest.Version.ChangeType)
	assert.Equal(t, "Rolled back to version 2", latest.Version.Comment)
	assert.Equal(t, "Grace", latest.Version.CreatedBy.Name)

	from, ok := latest.Version.RolledBackFrom()
	assert.True(t, ok)
	assert.Equal(t, int64(2), from)

	delta, ok := latest.Version.WordCountDelta()
	assert.True(t, ok)
	assert.Equal(t, int64(-1), delta)

	after, err := f.versions.GetVersion(context.TODO(), scope, 2)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)

	current, err := f.versions.GetCurrentContent(context.TODO(), scope)
	require.NoError(t, err)
	assert.Equal(t, int64(4), current.VersionNumber)
	assert.JSONEq(t, `{"total":"one two"}`, string(current.Content))
}

func TestVersionService_RollbackMissingVersion(t *testing.T) {
	f := newFixture(t)
	f.proposal(t, "p-1", "budget")
	scope := model.FormScope("p-1", "budget")

	for i := 1; i <= 3; i++ {
		f.save(t, scope, fmt.Sprintf(`{"n":%d}`, i))
	}

	_, err := f.versions.Rollback(context.TODO(), scope, 99, SystemUser)
	requireCode(t, err, codes.NotFound)

	current, err := f.versions.GetCurrentContent(context.TODO(), scope)
	require.NoError(t, err)
	assert.Equal(t, int64(3), current.VersionNumber)

	list, err := f.versions.ListVersions(context.TODO(), scope, v1.DefaultListLimit)
	require.NoError(t, err)
	assert.Len(t, list.Versions, 3)
}

func TestVersionService_RollbackProposalScope(t *testing.T) {
	f := newFixture(t)
	f.proposal(t, "p-1")
	scope := model.ProposalScope("p-1")

	f.save(t, scope, `{"abstract":"first draft"}`)
	f.save(t, scope, `{"abstract":"second draft"}`)

	res, err := f.versions.Rollback(context.TODO(), scope, 1, SystemUser)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.NewVersion)

	got, err := f.versions.GetVersion(context.TODO(), scope, 3)
	require.NoError(t, err)
	assert.Equal(t, string(model.ScopeProposal), got.Version.ScopeType)
	assert.Empty(t, got.Version.FormID)
	assert.Equal(t, "system", got.Version.CreatedBy.ID)
}

func TestVersionService_EmptyScope(t *testing.T) {
	f := newFixture(t)
	f.proposal(t, "p-1", "budget")

	list, err := f.versions.ListVersions(context.TODO(), model.FormScope("p-1", "budget"), v1.DefaultListLimit)
	require.NoError(t, err)
	assert.NotNil(t, list.Versions)
	assert.Empty(t, list.Versions)

	stats, err := f.versions.GetVersionStats(context.TODO(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Stats.TotalVersions)
	assert.Equal(t, 0.0, stats.Stats.CompressionRatio)

	current, err := f.versions.GetCurrentContent(context.TODO(), model.FormScope("p-1", "budget"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), current.VersionNumber)
	assert.Nil(t, current.Content)
}

func TestVersionService_ConcurrentSaves(t *testing.T) {
	f := newFixture(t)
	f.proposal(t, "p-1", "budget")
	scope := model.FormScope("p-1", "budget")

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.versions.SaveVersion(context.TODO(), scope, SystemUser, &v1.SaveVersionRequest{
				Content: json.RawMessage(fmt.Sprintf(`{"writer":%d}`, i)),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	list, err := f.versions.ListVersions(context.TODO(), scope, v1.DefaultListLimit)
	require.NoError(t, err)

	numbers := versionNumbers(list.Versions)
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8}, numbers)
}

func TestVersionService_ListOrdering(t *testing.T) {
	f := newFixture(t)
	f.proposal(t, "p-1")
	scope := model.ProposalScope("p-1")

	for i := 1; i <= 6; i++ {
		f.save(t, scope, fmt.Sprintf(`{"n":%d}`, i))
	}

	list, err := f.versions.ListVersions(context.TODO(), scope, v1.DefaultListLimit)
	require.NoError(t, err)
	require.Len(t, list.Versions, 6)

	for i := 1; i < len(list.Versions); i++ {
		newer, older := list.Versions[i-1], list.Versions[i]
		assert.Greater(t, newer.VersionNumber, older.VersionNumber)
		assert.False(t, newer.CreatedAt.Before(older.CreatedAt))
		assert.Nil(t, older.Content)
	}

	limited, err := f.versions.ListVersions(context.TODO(), scope, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 5}, versionNumbers(limited.Versions))
}

func TestVersionService_Errors(t *testing.T) {
	f := newFixture(t)
	f.proposal(t, "p-1", "budget")

	tests := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{
			name: "list unknown proposal",
			call: func() error {
				_, err := f.versions.ListVersions(context.TODO(), model.ProposalScope("missing"), 50)
				return err
			},
			code: codes.NotFound,
		},
		{
			name: "list unknown form",
			call: func() error {
				_, err := f.versions.ListVersions(context.TODO(), model.FormScope("p-1", "missing"), 50)
				return err
			},
			code: codes.NotFound,
		},
		{
			name: "list zero limit",
			call: func() error {
				_, err := f.versions.ListVersions(context.TODO(), model.ProposalScope("p-1"), 0)
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "save invalid json",
			call: func() error {
				_, err := f.versions.SaveVersion(context.TODO(), model.ProposalScope("p-1"), SystemUser, &v1.SaveVersionRequest{
					Content: json.RawMessage(`{broken`),
				})
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "save unknown version type",
			call: func() error {
				_, err := f.versions.SaveVersion(context.TODO(), model.ProposalScope("p-1"), SystemUser, &v1.SaveVersionRequest{
					Content:     json.RawMessage(`{}`),
					VersionType: "DELTA",
				})
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "stats unknown proposal",
			call: func() error {
				_, err := f.versions.GetVersionStats(context.TODO(), "missing")
				return err
			},
			code: codes.NotFound,
		},
		{
			name: "rollback unknown form",
			call: func() error {
				_, err := f.versions.Rollback(context.TODO(), model.FormScope("p-1", "missing"), 1, SystemUser)
				return err
			},
			code: codes.NotFound,
		},
		{
			name: "duplicate proposal",
			call: func() error {
				_, err := f.proposals.CreateProposal(context.TODO(), &v1.CreateProposalRequest{ID: "p-1"})
				return err
			},
			code: codes.AlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireCode(t, tt.call(), tt.code)
		})
	}
}

func TestVersionService_StatsRollup(t *testing.T) {
	f := newFixture(t)
	f.proposal(t, "p-1", "budget", "team")
	f.proposal(t, "p-2")

	body := `{"narrative":"` + repeatWords("irrigation trial", 200) + `"}`
	f.save(t, model.ProposalScope("p-1"), body)
	f.save(t, model.FormScope("p-1", "budget"), body)
	f.save(t, model.FormScope("p-1", "team"), body)
	f.save(t, model.FormScope("p-1", "team"), body)
	f.save(t, model.ProposalScope("p-2"), body)

	res, err := f.versions.GetVersionStats(context.TODO(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Stats.TotalVersions)
	assert.Greater(t, res.Stats.CompressionRatio, 50.0)
	assert.Less(t, res.Stats.CompressionRatio, 100.0)

	// served from cache until the next append invalidates it
	cached, err := f.cache.GetStats(context.TODO(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), cached.TotalVersions)

	f.save(t, model.FormScope("p-1", "budget"), body)
	_, err = f.cache.GetStats(context.TODO(), "p-1")
	assert.Error(t, err)

	res, err = f.versions.GetVersionStats(context.TODO(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Stats.TotalVersions)
}

func TestVersionService_SaveMetadata(t *testing.T) {
	f := newFixture(t)
	f.proposal(t, "p-1")
	scope := model.ProposalScope("p-1")

	first := f.save(t, scope, `{"title":"Soil sensing","sections":["a b c"]}`)
	delta, ok := first.WordCountDelta()
	require.True(t, ok)
	assert.Equal(t, int64(5), delta)
	assert.Equal(t, model.ChangeManualEdit, first.ChangeType)
	assert.Equal(t, string(model.VersionSnapshot), first.VersionType)

	res, err := f.versions.SaveVersion(context.TODO(), scope, User{ID: "u-1", Name: "Ada"}, &v1.SaveVersionRequest{
		Content:     json.RawMessage(`{"title":"Soil sensing"}`),
		VersionType: string(model.VersionIncremental),
		ChangeType:  "autosave",
		Comment:     "trimmed sections",
		Metadata:    map[string]any{"source": "editor"},
	})
	require.NoError(t, err)

	second := res.Version
	delta, ok = second.WordCountDelta()
	require.True(t, ok)
	assert.Equal(t, int64(-3), delta)
	assert.Equal(t, "editor", second.Metadata["source"])
	assert.Equal(t, "autosave", second.ChangeType)
	assert.Equal(t, "trimmed sections", second.Comment)
	assert.Equal(t, int64(2), second.VersionNumber)
}

func TestVersionService_PublishesEvents(t *testing.T) {
	f := newFixture(t)
	f.proposal(t, "p-1", "budget")
	scope := model.FormScope("p-1", "budget")

	f.save(t, scope, `{"a":1}`)
	_, err := f.versions.Rollback(context.TODO(), scope, 1, SystemUser)
	require.NoError(t, err)

	first := <-f.queue.Events()
	second := <-f.queue.Events()
	assert.Equal(t, int64(1), first.VersionNumber)
	assert.Equal(t, model.ChangeManualEdit, first.ChangeType)
	assert.Equal(t, int64(2), second.VersionNumber)
	assert.Equal(t, model.ChangeRollback, second.ChangeType)
	assert.Equal(t, "p-1/budget", second.Key())
}

func repeatWords(words string, n int) string {
	out := words
	for i := 1; i < n; i++ {
		out += " " + words
	}
	return out
}
