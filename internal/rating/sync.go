package rating

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/metrics"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/recipes"
	"github.com/IoanaFeraru/recipe-platform-sub000/pkg/log"
)

var (
	// ErrReadComments — не удалось перечитать комментарии рецепта.
	ErrReadComments = errors.New("rating sync: read comments")
	// ErrWriteAggregate — не удалось записать агрегат на рецепт.
	ErrWriteAggregate = errors.New("rating sync: write aggregate")
)

// Source — откуда перечитываются комментарии.
type Source interface {
	ByResource(ctx context.Context, recipeID uuid.UUID) ([]models.Comment, error)
}

// Result — то, что было записано на рецепт.
type Result struct {
	AvgRating   float64
	ReviewCount int
}

// Syncer пересчитывает рейтинг с нуля по всем комментариям рецепта и пишет его
// через RatingWriter. Чтение и запись не транзакционны: два параллельных
// пересчёта одного рецепта могут записать устаревшее значение, следующий
// успешный пересчёт его исправит. С serialize пересчёты одного рецепта в
// пределах процесса идут по очереди.
type Syncer struct {
	src       Source
	writer    recipes.RatingWriter
	serialize bool

	mu    sync.Mutex
	locks map[uuid.UUID]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewSyncer создаёт Syncer.
func NewSyncer(src Source, writer recipes.RatingWriter, serialize bool) *Syncer {
	return &Syncer{
		src:       src,
		writer:    writer,
		serialize: serialize,
		locks:     make(map[uuid.UUID]*keyLock),
	}
}

// Sync перечитывает комментарии, считает агрегат и записывает его.
// Ошибки чтения и записи различаются: ErrReadComments и ErrWriteAggregate.
func (s *Syncer) Sync(ctx context.Context, recipeID, ownerID uuid.UUID) (Result, error) {
	const op = "rating/Sync"

	if s.serialize {
		unlock := s.lock(recipeID)
		defer unlock()
	}

	lg := log.From(ctx).With("op", op, "recipe_id", recipeID.String())

	comments, err := s.src.ByResource(ctx, recipeID)
	if err != nil {
		metrics.RatingSyncs.WithLabelValues(metrics.SyncReadFailed).Inc()
		lg.Error("read comments failed", "err", err)
		return Result{}, fmt.Errorf("%s: %w: %w", op, ErrReadComments, err)
	}

	sum := Aggregate(comments, ownerID)
	res := Result{AvgRating: sum.AvgRating, ReviewCount: sum.ReviewCount}

	if err := s.writer.WriteRating(ctx, recipeID, res.AvgRating, res.ReviewCount); err != nil {
		metrics.RatingSyncs.WithLabelValues(metrics.SyncWriteFailed).Inc()
		lg.Error("write aggregate failed", "err", err)
		return res, fmt.Errorf("%s: %w: %w", op, ErrWriteAggregate, err)
	}

	metrics.RatingSyncs.WithLabelValues(metrics.SyncOK).Inc()
	lg.Debug("rating synced", "avg_rating", res.AvgRating, "review_count", res.ReviewCount)

	return res, nil
}

// lock берёт мьютекс рецепта; запись о нём живёт, пока есть ожидающие.
func (s *Syncer) lock(recipeID uuid.UUID) func() {
	s.mu.Lock()
	kl, ok := s.locks[recipeID]
	if !ok {
		kl = &keyLock{}
		s.locks[recipeID] = kl
	}
	kl.refs++
	s.mu.Unlock()

	kl.mu.Lock()

	return func() {
		kl.mu.Unlock()

		s.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(s.locks, recipeID)
		}
		s.mu.Unlock()
	}
}
