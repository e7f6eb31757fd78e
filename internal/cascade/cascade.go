// Package cascade удаляет комментарий вместе со всеми его (транзитивными) ответами.
package cascade

import (
	"context"
	"errors"
	"fmt"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/metrics"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/storage"
)

// ErrPartialCascade — часть ветки удалена, часть осталась. Повтор безопасен.
var ErrPartialCascade = errors.New("partial cascade delete")

// PartialError описывает прерванный каскад.
type PartialError struct {
	Deleted []string
	Pending []string
	Err     error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s: deleted %d, pending %d: %v", ErrPartialCascade, len(e.Deleted), len(e.Pending), e.Err)
}

// Is делает errors.Is(err, ErrPartialCascade) истинным.
func (e *PartialError) Is(target error) bool { return target == ErrPartialCascade }

func (e *PartialError) Unwrap() error { return e.Err }

// Store — операции хранилища, нужные каскаду.
type Store interface {
	Replies(ctx context.Context, parentID string) ([]models.Comment, error)
	Delete(ctx context.Context, id string) error
}

// Deleter выполняет каскадное удаление.
type Deleter struct {
	store Store
}

// New создаёт Deleter.
func New(store Store) *Deleter {
	return &Deleter{store: store}
}

// DeleteWithReplies собирает ветку обходом в ширину по явной очереди, затем
// удаляет её с конца: сначала самые глубокие ответы, корень последним.
//
// Не транзакционно. Сбой до первого удаления возвращается как обычная ошибка;
// сбой после — как *PartialError. Уже удалённые записи (ErrNotFound) при
// повторе пропускаются. Возвращает число реально удалённых записей.
func (d *Deleter) DeleteWithReplies(ctx context.Context, id string) (int, error) {
	const op = "cascade/DeleteWithReplies"

	order, err := d.collect(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	deleted := make([]string, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		cur := order[i]

		err := d.store.Delete(ctx, cur)
		switch {
		case err == nil:
			deleted = append(deleted, cur)
		case errors.Is(err, storage.ErrNotFound):
		case len(deleted) == 0:
			return 0, fmt.Errorf("%s: delete %s: %w", op, cur, err)
		default:
			pending := make([]string, 0, i+1)
			for j := i; j >= 0; j-- {
				pending = append(pending, order[j])
			}

			metrics.CascadePartial.Inc()

			return len(deleted), fmt.Errorf("%s: %w", op, &PartialError{Deleted: deleted, Pending: pending, Err: err})
		}
	}

	return len(deleted), nil
}

// collect возвращает id ветки в порядке обхода в ширину, корень первым.
func (d *Deleter) collect(ctx context.Context, root string) ([]string, error) {
	order := []string{root}
	seen := map[string]struct{}{root: {}}

	for next := 0; next < len(order); next++ {
		replies, err := d.store.Replies(ctx, order[next])
		if err != nil {
			return nil, fmt.Errorf("replies of %s: %w", order[next], err)
		}

		for _, r := range replies {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			order = append(order, r.ID)
		}
	}

	return order, nil
}
