// Package policy — правила выставления оценок: владелец рецепта не оценивает,
// у пользователя не больше одного оценённого отзыва на рецепт.
package policy

import (
	"errors"

	"github.com/google/uuid"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
)

var (
	// ErrOwnerCannotRate — владелец рецепта пытается приложить оценку.
	ErrOwnerCannotRate = errors.New("recipe owner cannot rate")
	// ErrDuplicateRating — у автора уже есть оценённый отзыв на этот рецепт.
	ErrDuplicateRating = errors.New("rating already submitted")
)

// CanSubmitRating проверяет попытку записи оценки.
//
//   - withRating — вызывающий прикладывает оценку;
//   - isNewTopLevelRating — появляется новый оценённый отзыв (создание или
//     добавление оценки к отзыву, у которого её не было). Правка оценки того же
//     отзыва сюда не относится.
//
// Владельцу разрешены комментарии без оценки и ответы.
func CanSubmitRating(existing []models.Comment, authorID, ownerID uuid.UUID, withRating, isNewTopLevelRating bool) error {
	if authorID == ownerID {
		if withRating {
			return ErrOwnerCannotRate
		}

		return nil
	}

	if !isNewTopLevelRating {
		return nil
	}

	for _, c := range existing {
		if c.AuthorID == authorID && c.HasRating() {
			return ErrDuplicateRating
		}
	}

	return nil
}
