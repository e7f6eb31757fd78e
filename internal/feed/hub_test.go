package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
)

const waitFor = 2 * time.Second

// versionSource отдаёт снимок из одного комментария с номером версии в Text.
type versionSource struct {
	mu      sync.Mutex
	version int
	err     error
}

func (s *versionSource) ByResource(context.Context, uuid.UUID) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	return []models.Comment{{ID: "c", Text: strconv.Itoa(s.version)}}, nil
}

func (s *versionSource) bump() {
	s.mu.Lock()
	s.version++
	s.mu.Unlock()
}

// recorder копит версии доставленных снимков.
type recorder struct {
	mu  sync.Mutex
	got []string
	ch  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 64)}
}

func (r *recorder) fn(snap []models.Comment) {
	r.mu.Lock()
	r.got = append(r.got, snap[0].Text)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.ch:
		case <-time.After(waitFor):
			t.Fatalf("timeout waiting for delivery %d/%d", i+1, n)
		}
	}
}

func (r *recorder) versions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.got...)
}

func newTestHub(src Source, buffer int) *Hub {
	return NewHub(src, Options{Buffer: buffer, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func TestHub_InitialSnapshotThenChangesInOrder(t *testing.T) {
	t.Parallel()

	src := &versionSource{}
	h := newTestHub(src, 8)
	recipe := uuid.New()

	rec := newRecorder()
	cancel, err := h.Subscribe(context.Background(), recipe, rec.fn)
	require.NoError(t, err)
	defer cancel()

	rec.wait(t, 1)

	for i := 0; i < 3; i++ {
		src.bump()
		h.Notify(context.Background(), recipe)
	}
	rec.wait(t, 3)

	require.Equal(t, []string{"0", "1", "2", "3"}, rec.versions())
}

func TestHub_NotifyOtherRecipeIsIgnored(t *testing.T) {
	t.Parallel()

	src := &versionSource{}
	h := newTestHub(src, 8)

	rec := newRecorder()
	cancel, err := h.Subscribe(context.Background(), uuid.New(), rec.fn)
	require.NoError(t, err)
	defer cancel()
	rec.wait(t, 1)

	h.Notify(context.Background(), uuid.New())

	select {
	case <-rec.ch:
		t.Fatal("unexpected delivery for another recipe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	src := &versionSource{}
	h := newTestHub(src, 8)
	recipe := uuid.New()

	rec := newRecorder()
	cancel, err := h.Subscribe(context.Background(), recipe, rec.fn)
	require.NoError(t, err)
	rec.wait(t, 1)
	require.Equal(t, 1, h.Subscribers(recipe))

	cancel()
	cancel() // идемпотентно

	require.Equal(t, 0, h.Subscribers(recipe))

	src.bump()
	h.Notify(context.Background(), recipe)

	require.Equal(t, []string{"0"}, rec.versions())

	h.mu.Lock()
	_, left := h.topics[recipe]
	h.mu.Unlock()
	require.False(t, left)
}

func TestHub_ContextCancelUnsubscribes(t *testing.T) {
	t.Parallel()

	h := newTestHub(&versionSource{}, 8)
	recipe := uuid.New()

	ctx, cancelCtx := context.WithCancel(context.Background())
	rec := newRecorder()
	_, err := h.Subscribe(ctx, recipe, rec.fn)
	require.NoError(t, err)
	rec.wait(t, 1)

	cancelCtx()

	require.Eventually(t, func() bool { return h.Subscribers(recipe) == 0 }, waitFor, 5*time.Millisecond)
}

func TestHub_SlowSubscriberGetsNewest(t *testing.T) {
	t.Parallel()

	src := &versionSource{}
	h := newTestHub(src, 1)
	recipe := uuid.New()

	entered := make(chan struct{}, 8)
	release := make(chan struct{})
	var (
		mu  sync.Mutex
		got []string
	)
	slow := func(snap []models.Comment) {
		mu.Lock()
		got = append(got, snap[0].Text)
		mu.Unlock()
		entered <- struct{}{}
		<-release
	}

	fastRec := newRecorder()
	cancelFast, err := h.Subscribe(context.Background(), recipe, fastRec.fn)
	require.NoError(t, err)
	defer cancelFast()
	fastRec.wait(t, 1)

	cancelSlow, err := h.Subscribe(context.Background(), recipe, slow)
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("slow subscriber did not receive initial snapshot")
	}

	for i := 0; i < 3; i++ {
		src.bump()
		h.Notify(context.Background(), recipe)
		// быстрый подписчик получает каждую версию, медленный его не тормозит.
		fastRec.wait(t, 1)
	}

	close(release)
	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("slow subscriber did not receive coalesced snapshot")
	}
	cancelSlow()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"0", "3"}, got)
	require.Equal(t, []string{"0", "1", "2", "3"}, fastRec.versions())
}

func TestHub_SubscribeSourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	h := newTestHub(&versionSource{err: boom}, 8)
	recipe := uuid.New()

	cancel, err := h.Subscribe(context.Background(), recipe, func([]models.Comment) {})
	require.ErrorIs(t, err, boom)
	require.Nil(t, cancel)

	h.mu.Lock()
	require.Empty(t, h.topics)
	h.mu.Unlock()
}

func TestHub_NotifyFetchErrorKeepsSubscription(t *testing.T) {
	t.Parallel()

	src := &versionSource{}
	h := newTestHub(src, 8)
	recipe := uuid.New()

	rec := newRecorder()
	cancel, err := h.Subscribe(context.Background(), recipe, rec.fn)
	require.NoError(t, err)
	defer cancel()
	rec.wait(t, 1)

	src.mu.Lock()
	src.err = errors.New("transient")
	src.mu.Unlock()
	h.Notify(context.Background(), recipe)

	src.mu.Lock()
	src.err = nil
	src.version = 7
	src.mu.Unlock()
	h.Notify(context.Background(), recipe)
	rec.wait(t, 1)

	require.Equal(t, []string{"0", "7"}, rec.versions())
}

func TestHub_NilCallback(t *testing.T) {
	t.Parallel()

	_, err := newTestHub(&versionSource{}, 1).Subscribe(context.Background(), uuid.New(), nil)
	require.Error(t, err)
}
