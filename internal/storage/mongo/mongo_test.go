package mongo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/config"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/feed"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/storage"
)

// testTimeout — общий дедлайн на операции с БД в тестах.
const testTimeout = 10 * time.Second

// TestMain поднимает MongoDB в контейнере один раз на пакет, если задан
// GO_TEST_INTEGRATION. Адрес уходит в DATABASE_URL, каждый тест создаёт свою БД.
func TestMain(m *testing.M) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7.0",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start mongo testcontainer: %v\n", err)
		os.Exit(1)
	}

	host, err := mongoC.Host(ctx)
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := mongoC.MappedPort(ctx, "27017/tcp")
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get mapped port: %v\n", err)
		os.Exit(1)
	}

	_ = os.Setenv("DATABASE_URL", fmt.Sprintf("mongodb://%s:%s", host, port.Port()))

	code := m.Run()

	_ = mongoC.Terminate(context.Background())
	os.Exit(code)
}

func mustNewMongo(t *testing.T) *Mongo {
	t.Helper()

	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("set GO_TEST_INTEGRATION=1 to run MongoDB tests")
	}

	base := strings.TrimSuffix(os.Getenv("DATABASE_URL"), "/")
	cfg := &config.Config{DB: config.DBConfig{URL: base + "/comments_test_" + uuid.NewString()}}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	m, err := New(ctx, cfg, feed.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err, "DATABASE_URL=%s", cfg.DB.URL)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		_ = m.db.Drop(ctx)
		_ = m.Close(ctx)
	})

	return m
}

func TestDatabaseFromURI(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"mongodb://localhost:27017/recipes_prod": "recipes_prod",
		"mongodb://localhost:27017/":             defaultDBName,
		"mongodb://localhost:27017":              defaultDBName,
		"::bad":                                  defaultDBName,
	}

	for in, want := range cases {
		require.Equal(t, want, databaseFromURI(in), in)
	}
}

func TestMongo_CreateListAndOrder(t *testing.T) {
	m := mustNewMongo(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	recipe := uuid.New()
	first, err := m.Create(ctx, models.CommentInput{
		RecipeID: recipe, AuthorID: uuid.New(), Text: "first", Rating: models.IntPtr(5),
		Author: models.AuthorDisplay{Name: "Ann", Email: "ann@example.com"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.Equal(t, 5, *first.Rating)
	require.Equal(t, "Ann", first.Author.Name)

	time.Sleep(5 * time.Millisecond)
	second, err := m.Create(ctx, models.CommentInput{RecipeID: recipe, AuthorID: uuid.New(), Text: "second"})
	require.NoError(t, err)

	reply, err := m.Create(ctx, models.CommentInput{
		RecipeID: recipe, AuthorID: uuid.New(), Text: "reply", ParentID: first.ID, Rating: models.IntPtr(2),
	})
	require.NoError(t, err)
	require.Nil(t, reply.Rating, "replies never keep a rating")

	owner, err := m.Create(ctx, models.CommentInput{
		RecipeID: recipe, AuthorID: uuid.New(), Text: "owner", IsOwnerReply: true, Rating: models.IntPtr(5),
	})
	require.NoError(t, err)
	require.Nil(t, owner.Rating)

	_, err = m.Create(ctx, models.CommentInput{RecipeID: uuid.New(), AuthorID: uuid.New(), Text: "other"})
	require.NoError(t, err)

	all, err := m.ByResource(ctx, recipe)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		require.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt), "newest first")
	}
	require.Equal(t, second.ID, all[len(all)-2].ID)

	replies, err := m.Replies(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.Equal(t, reply.ID, replies[0].ID)

	got, err := m.CommentByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, first.CreatedAt, got.CreatedAt)
	require.Equal(t, recipe, got.RecipeID)
}

func TestMongo_UpdateAndDelete(t *testing.T) {
	m := mustNewMongo(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	c, err := m.Create(ctx, models.CommentInput{RecipeID: uuid.New(), AuthorID: uuid.New(), Text: "a", Rating: models.IntPtr(3)})
	require.NoError(t, err)

	text := "b"
	upd, err := m.Update(ctx, c.ID, models.CommentPatch{Text: &text, Rating: models.IntPtr(4)})
	require.NoError(t, err)
	require.Equal(t, "b", upd.Text)
	require.Equal(t, 4, *upd.Rating)
	require.Equal(t, c.CreatedAt, upd.CreatedAt)

	upd, err = m.Update(ctx, c.ID, models.CommentPatch{ClearRating: true})
	require.NoError(t, err)
	require.Nil(t, upd.Rating)
	require.Equal(t, "b", upd.Text)

	require.NoError(t, m.Delete(ctx, c.ID))
	require.ErrorIs(t, m.Delete(ctx, c.ID), storage.ErrNotFound)

	_, err = m.CommentByID(ctx, c.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = m.Update(ctx, c.ID, models.CommentPatch{Text: &text})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMongo_BadIDIsNotFound(t *testing.T) {
	m := mustNewMongo(t)
	ctx := context.Background()

	_, err := m.CommentByID(ctx, "not-an-object-id")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.ErrorIs(t, m.Delete(ctx, "zzz"), storage.ErrNotFound)

	replies, err := m.Replies(ctx, "")
	require.NoError(t, err)
	require.Empty(t, replies)
}

func TestMongo_SubscribeSeesChanges(t *testing.T) {
	m := mustNewMongo(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	recipe := uuid.New()
	got := make(chan int, 8)
	stop, err := m.Subscribe(ctx, recipe, func(list []models.Comment) { got <- len(list) })
	require.NoError(t, err)
	defer stop()

	require.Equal(t, 0, <-got)

	_, err = m.Create(ctx, models.CommentInput{RecipeID: recipe, AuthorID: uuid.New(), Text: "x"})
	require.NoError(t, err)

	select {
	case n := <-got:
		require.Equal(t, 1, n)
	case <-time.After(testTimeout):
		t.Fatal("no snapshot after create")
	}
}
