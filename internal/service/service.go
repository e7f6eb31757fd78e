// Package service — публичная поверхность ядра комментариев: валидация и правила
// оценок до записи, запись в хранилище, каскадное удаление и пересчёт рейтинга.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/cascade"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/rating"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/recipes"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/storage"
)

var (
	// ErrInvalidArgument — неверные входные параметры. Нарушения валидации
	// доступны через errors.Is/As (validation.ErrEmptyText, *validation.Error).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound — комментарий (или родитель ответа) отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrForbidden — менять и удалять комментарий может только его автор.
	ErrForbidden = errors.New("forbidden")
	// ErrUnavailable — хранилище комментариев или БД рецептов недоступны.
	ErrUnavailable = errors.New("unavailable")
	// ErrRecipeNotFound — рецепт неизвестен.
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrRatingStale — изменение комментария зафиксировано, но пересчёт рейтинга
	// не удался. Результат операции при этом возвращается; повтор ResyncRating
	// восстановит агрегат.
	ErrRatingStale = errors.New("rating may be stale")
)

// Service — оркестрация операций над комментариями рецептов.
type Service struct {
	store   storage.Storage
	owners  recipes.OwnerLookup
	syncer  *rating.Syncer
	deleter *cascade.Deleter
}

// New создаёт Service. Все зависимости передаются явно.
func New(store storage.Storage, owners recipes.OwnerLookup, syncer *rating.Syncer, deleter *cascade.Deleter) *Service {
	return &Service{
		store:   store,
		owners:  owners,
		syncer:  syncer,
		deleter: deleter,
	}
}

// ownerOf — владелец рецепта с маппингом ошибок во внутренние sentinel'ы.
func (s *Service) ownerOf(ctx context.Context, lg *slog.Logger, op string, recipeID uuid.UUID) (uuid.UUID, error) {
	owner, err := s.owners.OwnerOf(ctx, recipeID)
	if err != nil {
		if errors.Is(err, recipes.ErrRecipeNotFound) {
			lg.Warn("recipe not found")
			return uuid.Nil, fmt.Errorf("%s: %w", op, ErrRecipeNotFound)
		}

		lg.Error("owner lookup failed", "err", err)
		return uuid.Nil, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	return owner, nil
}

// storeErr приводит ошибку хранилища к ErrNotFound или ErrUnavailable.
func storeErr(lg *slog.Logger, op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		lg.Warn("comment not found")
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	lg.Error("storage error", "err", err)
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

// sync пересчитывает рейтинг после уже зафиксированной мутации.
// Сбой не откатывает мутацию и превращается в ErrRatingStale.
func (s *Service) sync(ctx context.Context, lg *slog.Logger, op string, recipeID, ownerID uuid.UUID) error {
	res, err := s.syncer.Sync(ctx, recipeID, ownerID)
	if err != nil {
		lg.Warn("rating_stale", "err", err)
		return fmt.Errorf("%s: %w: %w", op, ErrRatingStale, err)
	}

	lg.Info("rating_synced", "avg_rating", res.AvgRating, "review_count", res.ReviewCount)

	return nil
}
