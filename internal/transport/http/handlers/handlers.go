package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/rating"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/service"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/transport/http/apierrors"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/transport/http/middleware"
)

// Service — операции ядра, которые выставляет HTTP-слой.
type Service interface {
	Create(ctx context.Context, who models.Identity, in service.CreateInput) (*models.Comment, error)
	Update(ctx context.Context, who models.Identity, id string, patch models.CommentPatch) (*models.Comment, error)
	DeleteWithReplies(ctx context.Context, who models.Identity, id string) error
	CommentByID(ctx context.Context, id string) (*models.Comment, error)
	Replies(ctx context.Context, parentID string) ([]models.Comment, error)
	ListThreads(ctx context.Context, recipeID uuid.UUID) (*service.Overview, error)
	ResyncRating(ctx context.Context, recipeID uuid.UUID) (rating.Result, error)
	Subscribe(ctx context.Context, recipeID uuid.UUID, fn func([]models.Comment)) (func(), error)
}

// FeedOptions — параметры WebSocket-ленты.
type FeedOptions struct {
	WriteTimeout time.Duration
	PingPeriod   time.Duration
	PongWait     time.Duration
	// Base отменяется при остановке процесса и закрывает живые соединения.
	Base context.Context
}

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	svc      Service
	validate *validator.Validate
	feed     FeedOptions
}

func New(svc Service, v *validator.Validate, feed FeedOptions) *Handlers {
	if v == nil {
		v = validator.New()
	}

	if feed.WriteTimeout <= 0 {
		feed.WriteTimeout = 10 * time.Second
	}

	if feed.PingPeriod <= 0 {
		feed.PingPeriod = 54 * time.Second
	}

	if feed.PongWait <= feed.PingPeriod {
		feed.PongWait = feed.PingPeriod * 10 / 9
	}

	if feed.Base == nil {
		feed.Base = context.Background()
	}

	return &Handlers{svc: svc, validate: v, feed: feed}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// decodeValid — decodeStrict + проверка формы DTO тегами validate.
func (h *Handlers) decodeValid(r *http.Request, value any) error {
	if err := decodeStrict(r, value); err != nil {
		return fmt.Errorf("decode: %w", apierrors.ErrBadRequest)
	}

	if err := h.validate.Struct(value); err != nil {
		return fmt.Errorf("%v: %w", err, apierrors.ErrBadRequest)
	}

	return nil
}

func recipeParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "recipe_id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("recipe_id: %w", apierrors.ErrBadRequest)
	}

	return id, nil
}

func identity(r *http.Request) (models.Identity, error) {
	who, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return models.Identity{}, apierrors.ErrUnauthenticated
	}

	return who, nil
}
