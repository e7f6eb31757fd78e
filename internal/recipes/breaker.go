package recipes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/metrics"
)

// BreakerSettings — пороги circuit breaker.
type BreakerSettings struct {
	// MaxFailures подряд открывают цепь.
	MaxFailures uint32
	// Timeout — сколько цепь остаётся открытой до пробного запроса.
	Timeout time.Duration
	// Interval — период сброса счётчиков в закрытом состоянии (0 — не сбрасывать).
	Interval time.Duration
}

// BreakerWriter оборачивает RatingWriter: при недоступной БД рецептов запись
// рейтинга сразу отвечает ErrUnavailable, не дожидаясь таймаутов.
type BreakerWriter struct {
	next RatingWriter
	cb   *gobreaker.CircuitBreaker[struct{}]
}

var _ RatingWriter = (*BreakerWriter)(nil)

// NewBreakerWriter создаёт обёртку над next.
func NewBreakerWriter(next RatingWriter, s BreakerSettings, log *slog.Logger) *BreakerWriter {
	if log == nil {
		log = slog.Default()
	}

	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}

	const name = "rating-writer"
	metrics.BreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.MaxFailures
		},
		// Отсутствующий рецепт — ответ БД, а не её отказ.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRecipeNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("breaker_state_changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &BreakerWriter{next: next, cb: cb}
}

// WriteRating пишет агрегат через breaker.
func (b *BreakerWriter) WriteRating(ctx context.Context, recipeID uuid.UUID, avgRating float64, reviewCount int) error {
	const op = "recipes/BreakerWriter/WriteRating"

	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.WriteRating(ctx, recipeID, avgRating, reviewCount)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// State — текущее состояние цепи.
func (b *BreakerWriter) State() gobreaker.State {
	return b.cb.State()
}
