package recipes

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Aggregate — то, что последний раз записано на рецепт.
type Aggregate struct {
	AvgRating   float64
	ReviewCount int
	Writes      int
}

// Directory — справочник рецептов в памяти: владельцы и записанные агрегаты.
// Реализует OwnerLookup и RatingWriter; используется при env=local и в тестах.
type Directory struct {
	mu      sync.RWMutex
	owners  map[uuid.UUID]uuid.UUID
	ratings map[uuid.UUID]Aggregate
}

var (
	_ OwnerLookup  = (*Directory)(nil)
	_ RatingWriter = (*Directory)(nil)
)

// NewDirectory создаёт пустой справочник.
func NewDirectory() *Directory {
	return &Directory{
		owners:  make(map[uuid.UUID]uuid.UUID),
		ratings: make(map[uuid.UUID]Aggregate),
	}
}

// Register добавляет рецепт с владельцем.
func (d *Directory) Register(recipeID, ownerID uuid.UUID) {
	d.mu.Lock()
	d.owners[recipeID] = ownerID
	d.mu.Unlock()
}

// OwnerOf возвращает владельца.
func (d *Directory) OwnerOf(_ context.Context, recipeID uuid.UUID) (uuid.UUID, error) {
	d.mu.RLock()
	owner, ok := d.owners[recipeID]
	d.mu.RUnlock()

	if !ok {
		return uuid.Nil, fmt.Errorf("recipes/Directory/OwnerOf: %w", ErrRecipeNotFound)
	}

	return owner, nil
}

// WriteRating запоминает агрегат.
func (d *Directory) WriteRating(_ context.Context, recipeID uuid.UUID, avgRating float64, reviewCount int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.owners[recipeID]; !ok {
		return fmt.Errorf("recipes/Directory/WriteRating: %w", ErrRecipeNotFound)
	}

	prev := d.ratings[recipeID]
	d.ratings[recipeID] = Aggregate{AvgRating: avgRating, ReviewCount: reviewCount, Writes: prev.Writes + 1}

	return nil
}

// Rating — последний записанный агрегат.
func (d *Directory) Rating(recipeID uuid.UUID) (Aggregate, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.ratings[recipeID]
	return a, ok
}
