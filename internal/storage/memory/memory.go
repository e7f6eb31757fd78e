// Package memory — хранилище комментариев в памяти процесса.
// Используется в тестах и при env=local без MongoDB.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/feed"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/storage"
)

// Memory реализует storage.Storage.
type Memory struct {
	mu       sync.RWMutex
	comments map[string]models.Comment
	last     time.Time
	now      func() time.Time

	hub      *feed.Hub
	notifier feed.Notifier
}

var _ storage.Storage = (*Memory)(nil)

// New создаёт пустое хранилище со встроенной лентой изменений.
func New(opts feed.Options) *Memory {
	m := &Memory{
		comments: make(map[string]models.Comment),
		now:      time.Now,
	}
	m.hub = feed.NewHub(m, opts)
	m.notifier = m.hub

	return m
}

// Hub — локальная лента изменений хранилища.
func (m *Memory) Hub() *feed.Hub { return m.hub }

// SetNotifier подменяет получателя сигналов об изменениях (например, мост в Redis).
// nil возвращает локальный Hub.
func (m *Memory) SetNotifier(n feed.Notifier) {
	if n == nil {
		n = m.hub
	}

	m.mu.Lock()
	m.notifier = n
	m.mu.Unlock()
}

// Create сохраняет комментарий.
func (m *Memory) Create(ctx context.Context, in models.CommentInput) (*models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("storage/memory/Create: %w: %v", storage.ErrUnavailable, err)
	}

	m.mu.Lock()
	now := m.tick()
	c := models.Comment{
		ID:           uuid.NewString(),
		RecipeID:     in.RecipeID,
		AuthorID:     in.AuthorID,
		Author:       in.Author,
		Text:         in.Text,
		Rating:       copyRating(in.Rating),
		ParentID:     strings.TrimSpace(in.ParentID),
		IsOwnerReply: in.IsOwnerReply,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if c.IsOwnerReply || !c.IsTopLevel() {
		c.Rating = nil
	}
	m.comments[c.ID] = c
	n := m.notifier
	m.mu.Unlock()

	n.Notify(ctx, c.RecipeID)

	return clone(c), nil
}

// ByResource — все комментарии рецепта, сначала новые.
func (m *Memory) ByResource(ctx context.Context, recipeID uuid.UUID) ([]models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("storage/memory/ByResource: %w: %v", storage.ErrUnavailable, err)
	}

	m.mu.RLock()
	out := m.filter(func(c models.Comment) bool { return c.RecipeID == recipeID })
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return out, nil
}

// Replies — прямые ответы, сначала старые.
func (m *Memory) Replies(ctx context.Context, parentID string) ([]models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("storage/memory/Replies: %w: %v", storage.ErrUnavailable, err)
	}

	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return []models.Comment{}, nil
	}

	m.mu.RLock()
	out := m.filter(func(c models.Comment) bool { return c.ParentID == parentID })
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

// CommentByID возвращает комментарий по идентификатору.
func (m *Memory) CommentByID(ctx context.Context, id string) (*models.Comment, error) {
	const op = "storage/memory/CommentByID"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, storage.ErrUnavailable, err)
	}

	m.mu.RLock()
	c, ok := m.comments[strings.TrimSpace(id)]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return clone(c), nil
}

// Update меняет текст и/или оценку.
func (m *Memory) Update(ctx context.Context, id string, patch models.CommentPatch) (*models.Comment, error) {
	const op = "storage/memory/Update"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, storage.ErrUnavailable, err)
	}

	m.mu.Lock()
	c, ok := m.comments[strings.TrimSpace(id)]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if patch.Text != nil {
		c.Text = *patch.Text
	}

	switch {
	case patch.ClearRating:
		c.Rating = nil
	case patch.Rating != nil:
		c.Rating = copyRating(patch.Rating)
	}

	c.UpdatedAt = m.now().UTC()
	m.comments[c.ID] = c
	n := m.notifier
	m.mu.Unlock()

	n.Notify(ctx, c.RecipeID)

	return clone(c), nil
}

// Delete удаляет одну запись.
func (m *Memory) Delete(ctx context.Context, id string) error {
	const op = "storage/memory/Delete"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w: %v", op, storage.ErrUnavailable, err)
	}

	m.mu.Lock()
	c, ok := m.comments[strings.TrimSpace(id)]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	delete(m.comments, c.ID)
	n := m.notifier
	m.mu.Unlock()

	n.Notify(ctx, c.RecipeID)

	return nil
}

// Subscribe подписывает fn на изменения рецепта.
func (m *Memory) Subscribe(ctx context.Context, recipeID uuid.UUID, fn func([]models.Comment)) (func(), error) {
	return m.hub.Subscribe(ctx, recipeID, fn)
}

// Close ничего не держит.
func (m *Memory) Close(context.Context) error { return nil }

// tick выдаёт строго возрастающее время создания, чтобы порядок был однозначным
// даже при совпадении показаний часов. Вызывается под m.mu.
func (m *Memory) tick() time.Time {
	now := m.now().UTC()
	if !now.After(m.last) {
		now = m.last.Add(time.Microsecond)
	}
	m.last = now

	return now
}

func (m *Memory) filter(keep func(models.Comment) bool) []models.Comment {
	out := make([]models.Comment, 0)
	for _, c := range m.comments {
		if keep(c) {
			out = append(out, *clone(c))
		}
	}

	return out
}

func clone(c models.Comment) *models.Comment {
	c.Rating = copyRating(c.Rating)
	return &c
}

func copyRating(r *int) *int {
	if r == nil {
		return nil
	}

	v := *r
	return &v
}
