package repositories

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardrender/internal/models"
	"cardrender/internal/pkg/ids"
)

// Runs against a real database when CARDRENDER_TEST_DATABASE_URL is set.
func newTestRepo(t *testing.T) *RenderRepository {
	t.Helper()
	dsn := os.Getenv("CARDRENDER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CARDRENDER_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewRenderRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func TestRecordAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := &models.Render{
		ID:         ids.NewID("rnd"),
		Kind:       "personal",
		Template:   "personal_progress_v1.hbs",
		ObjectKey:  "reports/personal-Anh_A-1.png",
		URL:        "https://media.example.com/reports/personal-Anh_A-1.png",
		Width:      1080,
		Height:     1350,
		Bytes:      2048,
		DurationMS: 812,
	}
	require.NoError(t, repo.Record(ctx, m))
	assert.False(t, m.CreatedAt.IsZero())

	list, err := repo.List(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, list)

	var found bool
	for _, r := range list {
		if r.ID == m.ID {
			found = true
			assert.Equal(t, m.URL, r.URL)
			assert.Equal(t, "", r.RequestID)
		}
	}
	assert.True(t, found)
	assert.NoError(t, repo.Ping(ctx))
}
