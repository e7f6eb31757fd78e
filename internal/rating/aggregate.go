// Package rating считает агрегат оценок рецепта и записывает его на рецепт.
package rating

import (
	"github.com/google/uuid"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
)

// Qualifies — оценка засчитывается: корневой комментарий, оценка есть,
// автор не владелец рецепта.
func Qualifies(c models.Comment, ownerID uuid.UUID) bool {
	return c.HasRating() && c.AuthorID != ownerID
}

// Aggregate считает среднее, количество и гистограмму по засчитанным оценкам.
// Округления нет; при отсутствии оценок среднее 0.
func Aggregate(comments []models.Comment, ownerID uuid.UUID) models.Summary {
	s := models.Summary{Histogram: models.EmptyHistogram()}

	sum := 0
	for _, c := range comments {
		if !Qualifies(c, ownerID) {
			continue
		}

		r := *c.Rating
		if r < models.MinRating || r > models.MaxRating {
			continue
		}

		sum += r
		s.ReviewCount++
		s.Histogram[r]++
	}

	if s.ReviewCount > 0 {
		s.AvgRating = float64(sum) / float64(s.ReviewCount)
	}

	return s
}
