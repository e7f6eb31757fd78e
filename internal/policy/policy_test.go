package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
)

func TestCanSubmitRating(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	existing := []models.Comment{
		{ID: "1", AuthorID: alice, Rating: models.IntPtr(4)},
		{ID: "2", AuthorID: bob, ParentID: "1", Rating: models.IntPtr(5)}, // ответ: не считается
		{ID: "3", AuthorID: bob},
	}

	tests := []struct {
		name       string
		author     uuid.UUID
		withRating bool
		newRating  bool
		want       error
	}{
		{"owner with rating", owner, true, true, ErrOwnerCannotRate},
		{"owner without rating", owner, false, false, nil},
		{"owner update with rating", owner, true, false, ErrOwnerCannotRate},
		{"second rated review", alice, true, true, ErrDuplicateRating},
		{"update own rating", alice, true, false, nil},
		{"unrated comment by rated author", alice, false, false, nil},
		{"rated reply and unrated review do not count", bob, true, true, nil},
		{"first rating", uuid.New(), true, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CanSubmitRating(existing, tt.author, owner, tt.withRating, tt.newRating)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}
