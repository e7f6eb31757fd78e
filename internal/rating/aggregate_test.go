package rating

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
)

func TestAggregate_ExcludesRepliesOwnerAndUnrated(t *testing.T) {
	t.Parallel()

	owner, a, b := uuid.New(), uuid.New(), uuid.New()
	comments := []models.Comment{
		{ID: "1", AuthorID: a, Rating: models.IntPtr(5)},
		{ID: "2", AuthorID: owner, Rating: models.IntPtr(1)},
		{ID: "3", AuthorID: b, ParentID: "1", Rating: models.IntPtr(5)},
	}

	got := Aggregate(comments, owner)

	require.Equal(t, 1, got.ReviewCount)
	require.Equal(t, 5.0, got.AvgRating)
	require.Equal(t, map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 1}, got.Histogram)
}

func TestAggregate_Empty(t *testing.T) {
	t.Parallel()

	got := Aggregate(nil, uuid.New())
	require.Zero(t, got.ReviewCount)
	require.Zero(t, got.AvgRating)
	require.Len(t, got.Histogram, 5)
}

func TestAggregate_MeanNotRounded(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	comments := []models.Comment{
		{AuthorID: uuid.New(), Rating: models.IntPtr(5)},
		{AuthorID: uuid.New(), Rating: models.IntPtr(4)},
		{AuthorID: uuid.New(), Rating: models.IntPtr(4)},
		{AuthorID: uuid.New()},
	}

	got := Aggregate(comments, owner)
	require.Equal(t, 3, got.ReviewCount)
	require.InDelta(t, 13.0/3.0, got.AvgRating, 1e-12)
}

// Сумма гистограммы всегда равна числу засчитанных оценок.
func TestAggregate_HistogramSumsToCount(t *testing.T) {
	t.Parallel()

	rnd := rand.New(rand.NewSource(42))
	owner := uuid.New()
	authors := []uuid.UUID{owner, uuid.New(), uuid.New(), uuid.New()}

	for iter := 0; iter < 200; iter++ {
		n := rnd.Intn(30)
		comments := make([]models.Comment, 0, n)
		for i := 0; i < n; i++ {
			c := models.Comment{AuthorID: authors[rnd.Intn(len(authors))]}
			if rnd.Intn(3) > 0 {
				c.Rating = models.IntPtr(1 + rnd.Intn(5))
			}
			if rnd.Intn(4) == 0 {
				c.ParentID = "p"
			}
			comments = append(comments, c)
		}

		got := Aggregate(comments, owner)

		total := 0
		for _, v := range got.Histogram {
			total += v
		}
		require.Equal(t, got.ReviewCount, total)

		for _, c := range comments {
			if !Qualifies(c, owner) {
				continue
			}
			require.Positive(t, got.Histogram[*c.Rating])
		}
	}
}
