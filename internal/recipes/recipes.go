// Package recipes — граница с сервисом рецептов: кто владелец рецепта и куда
// записывать денормализованный рейтинг.
package recipes

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrRecipeNotFound — рецепта нет в БД рецептов.
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrUnavailable — БД рецептов недоступна (или открыт breaker).
	ErrUnavailable = errors.New("recipe store unavailable")
)

// OwnerLookup возвращает владельца рецепта.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, recipeID uuid.UUID) (uuid.UUID, error)
}

// RatingWriter записывает агрегат рейтинга на запись рецепта.
type RatingWriter interface {
	WriteRating(ctx context.Context, recipeID uuid.UUID, avgRating float64, reviewCount int) error
}
