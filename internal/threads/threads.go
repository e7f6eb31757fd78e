// Package threads группирует плоский список комментариев в ветки.
// Корни идут в том порядке, каким их отдало хранилище; ответы внутри ветки
// читаются сверху вниз, от старых к новым.
package threads

import (
	"slices"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
)

// TopLevel оставляет только корневые комментарии.
func TopLevel(comments []models.Comment) []models.Comment {
	out := make([]models.Comment, 0, len(comments))
	for _, c := range comments {
		if c.IsTopLevel() {
			out = append(out, c)
		}
	}

	return out
}

// RepliesOf — прямые ответы на parentID.
func RepliesOf(comments []models.Comment, parentID string) []models.Comment {
	out := make([]models.Comment, 0)
	if parentID == "" {
		return out
	}

	for _, c := range comments {
		if c.ParentID == parentID {
			out = append(out, c)
		}
	}

	return out
}

// Assemble собирает ветки: каждый корень (в исходном порядке) и его ответы
// по CreatedAt по возрастанию; при равном времени сохраняется исходный порядок.
// Ответы, чей родитель отсутствует в списке, молча отбрасываются.
func Assemble(comments []models.Comment) []models.Thread {
	byParent := make(map[string][]models.Comment)
	for _, c := range comments {
		if !c.IsTopLevel() {
			byParent[c.ParentID] = append(byParent[c.ParentID], c)
		}
	}

	out := make([]models.Thread, 0, len(comments))
	for _, c := range comments {
		if !c.IsTopLevel() {
			continue
		}

		replies := byParent[c.ID]
		if replies == nil {
			replies = []models.Comment{}
		}
		slices.SortStableFunc(replies, func(a, b models.Comment) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})

		out = append(out, models.Thread{Comment: c, Replies: replies})
	}

	return out
}
