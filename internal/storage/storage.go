package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
)

var (
	// ErrNotFound — сущность отсутствует в хранилище.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable — хранилище недоступно (сеть, драйвер, таймаут).
	ErrUnavailable = errors.New("store unavailable")
)

// Storage описывает операции над комментариями.
// Все методы, кроме Subscribe-колбэка, при сбое бэкенда возвращают ErrUnavailable.
type Storage interface {
	// Create сохраняет комментарий одной записью, проставляет ID и CreatedAt.
	// Оценка обнуляется у ответов и у комментариев владельца (IsOwnerReply).
	Create(ctx context.Context, in models.CommentInput) (*models.Comment, error)

	// ByResource — все комментарии рецепта (корни и ответы), сначала новые.
	ByResource(ctx context.Context, recipeID uuid.UUID) ([]models.Comment, error)

	// Replies — прямые ответы на parentID, сначала старые.
	Replies(ctx context.Context, parentID string) ([]models.Comment, error)

	// CommentByID возвращает комментарий по идентификатору.
	// Если запись не найдена — ErrNotFound.
	CommentByID(ctx context.Context, id string) (*models.Comment, error)

	// Update меняет текст и/или оценку. Прочие поля неизменяемы.
	// Если запись не найдена — ErrNotFound.
	Update(ctx context.Context, id string, patch models.CommentPatch) (*models.Comment, error)

	// Delete удаляет ровно одну запись, без каскада.
	// Если запись не найдена — ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Subscribe доставляет полный список комментариев рецепта при каждом изменении
	// (и один раз сразу после подписки). Возвращённая функция отменяет подписку;
	// после её возврата колбэк больше не вызывается.
	Subscribe(ctx context.Context, recipeID uuid.UUID, fn func([]models.Comment)) (func(), error)

	// Close закрывает соединения/ресурсы хранилища.
	Close(ctx context.Context) error
}
