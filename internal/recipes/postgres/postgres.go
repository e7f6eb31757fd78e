// postgres реализует recipes.OwnerLookup и recipes.RatingWriter поверх таблицы recipes.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/recipes"
)

// Storage — доступ к полям рецепта, нужным сервису комментариев.
type Storage struct {
	db *pgxpool.Pool
}

// Проверка выполнения контрактов верхнего уровня.
var (
	_ recipes.OwnerLookup  = (*Storage)(nil)
	_ recipes.RatingWriter = (*Storage)(nil)
)

// New создает и инициализирует пул соединений к PostgreSQL.
func New(ctx context.Context, dbURL string) (*Storage, error) {
	const op = "recipes/postgres/New"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// OwnerOf возвращает owner_id рецепта.
func (s *Storage) OwnerOf(ctx context.Context, recipeID uuid.UUID) (uuid.UUID, error) {
	const op = "recipes/postgres/OwnerOf"

	var owner uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT owner_id FROM recipes WHERE id = $1`, recipeID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%s: %w", op, recipes.ErrRecipeNotFound)
		}

		return uuid.Nil, fmt.Errorf("%s: %w: %v", op, recipes.ErrUnavailable, err)
	}

	return owner, nil
}

// WriteRating перезаписывает avg_rating и review_count целиком.
func (s *Storage) WriteRating(ctx context.Context, recipeID uuid.UUID, avgRating float64, reviewCount int) error {
	const op = "recipes/postgres/WriteRating"

	tag, err := s.db.Exec(ctx, `
		UPDATE recipes
		SET avg_rating = $2, review_count = $3, rating_updated_at = now()
		WHERE id = $1`, recipeID, avgRating, reviewCount)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, recipes.ErrUnavailable, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, recipes.ErrRecipeNotFound)
	}

	return nil
}

// Ping проверяет доступность БД; вызывается из /healthz.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close закрывает пул соединений.
// Должен вызываться при остановке приложения.
func (s *Storage) Close() {
	s.db.Close()
}
