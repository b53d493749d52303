package file_test

import (
	"testing"
	"time"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/persistence"
	"github.com/dukex/flowgraph/pkg/persistence/file"
	"github.com/dukex/flowgraph/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowRepository_SaveAndGet(t *testing.T) {
	t.Parallel()

	repo := file.NewPersistence(t.TempDir()).WorkflowRepository()
	nodes, edges := testutil.LinearPipeline()
	workflow := testutil.Definition("project-1", nodes, edges)

	require.NoError(t, repo.Save(t.Context(), workflow))

	loaded, err := repo.GetByID(t.Context(), workflow.ID)
	require.NoError(t, err)

	assert.Equal(t, workflow.Name, loaded.Name)
	assert.Equal(t, "project-1", loaded.ProjectID)
	require.NotNil(t, loaded.Current())
	assert.Len(t, loaded.Current().Nodes, 4)
	assert.Len(t, loaded.Current().Edges, 3)
	assert.Equal(t, models.NodeTypeProcessing, loaded.Current().Nodes[2].Type)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestWorkflowRepository_GetMissing(t *testing.T) {
	t.Parallel()

	repo := file.NewPersistence(t.TempDir()).WorkflowRepository()

	_, err := repo.GetByID(t.Context(), "does-not-exist")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = repo.Delete(t.Context(), "does-not-exist")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_ListFilters(t *testing.T) {
	t.Parallel()

	repo := file.NewPersistence(t.TempDir()).WorkflowRepository()
	nodes, edges := testutil.LinearPipeline()

	draft := testutil.Definition("project-1", nodes, edges, func(w *models.WorkflowDefinition) {
		w.Status = models.WorkflowStatusDraft
		w.CreatedAt = time.Now().UTC().Add(-time.Hour)
	})
	published := testutil.Definition("project-1", nodes, edges)
	other := testutil.Definition("project-2", nodes, edges)

	for _, w := range []*models.WorkflowDefinition{draft, published, other} {
		require.NoError(t, repo.Save(t.Context(), w))
	}

	all, err := repo.List(t.Context(), persistence.ListWorkflowsOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byProject, err := repo.List(t.Context(), persistence.ListWorkflowsOptions{ProjectID: "project-1"})
	require.NoError(t, err)
	require.Len(t, byProject, 2)
	assert.Equal(t, published.ID, byProject[0].ID)

	status := models.WorkflowStatusDraft
	drafts, err := repo.List(t.Context(), persistence.ListWorkflowsOptions{Status: &status})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, draft.ID, drafts[0].ID)

	require.NoError(t, repo.Delete(t.Context(), draft.ID))

	all, err = repo.List(t.Context(), persistence.ListWorkflowsOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
