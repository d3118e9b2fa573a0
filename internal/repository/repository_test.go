package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Jamolkhon5/nexter/internal/models"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func TestRepository_Migrate_Idempotent(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.Migrate(context.Background()))
}

func TestRepository_Projects(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.CreateProject(ctx, models.Project{Title: "Campaign X", Tags: []string{"marketing"}})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := repo.GetProject(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Campaign X", got.Title)
	assert.Equal(t, []string{"marketing"}, got.Tags)
	assert.Nil(t, got.StartDate)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got.Summary = "Grow signups"
	got.Achievements = "a, b"
	got.Tags = []string{"go", "ads, paid"}
	got.StartDate = &start
	require.NoError(t, repo.UpdateProject(ctx, got))

	updated, err := repo.GetProject(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grow signups", updated.Summary)
	assert.Equal(t, "a, b", updated.Achievements)
	assert.Equal(t, []string{"go", "ads, paid"}, updated.Tags)
	require.NotNil(t, updated.StartDate)
	assert.True(t, start.Equal(*updated.StartDate))
	assert.Nil(t, updated.EndDate)
}

func TestRepository_ProjectNotFound(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.GetProject(ctx, 404)
	assert.ErrorIs(t, err, ErrProjectNotFound)

	err = repo.UpdateProject(ctx, models.Project{ID: 404, Title: "ghost"})
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestRepository_Messages(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	firstID, err := repo.SaveMessage(ctx, models.Message{
		ID: "tmp-user-1", ProjectID: 3, Role: models.RoleUser, Content: "hi", Timestamp: now,
	})
	require.NoError(t, err)
	secondID, err := repo.SaveMessage(ctx, models.Message{
		ID: "tmp-ai-1", ProjectID: 3, Role: models.RoleAI, Content: "hello", Timestamp: now.Add(time.Second),
	})
	require.NoError(t, err)
	_, err = repo.SaveMessage(ctx, models.Message{ProjectID: 4, Role: models.RoleUser, Content: "elsewhere"})
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)

	msgs, err := repo.ListMessages(ctx, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, firstID, msgs[0].ID)
	assert.True(t, msgs[0].IsDurable())
	assert.Equal(t, models.RoleAI, msgs[1].Role)
	assert.Equal(t, "hello", msgs[1].Content)

	require.NoError(t, repo.DeleteMessages(ctx, 3))
	msgs, err = repo.ListMessages(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = repo.ListMessages(ctx, 4)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
