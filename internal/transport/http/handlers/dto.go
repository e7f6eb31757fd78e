package handlers

import (
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/rating"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/service"
)

type Author struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type Comment struct {
	ID           string `json:"id"`
	RecipeID     string `json:"recipe_id"`
	AuthorID     string `json:"author_id"`
	Author       Author `json:"author"`
	Text         string `json:"text"`
	Rating       *int   `json:"rating"`
	ParentID     string `json:"parent_id,omitempty"` // "" — отзыв
	IsOwnerReply bool   `json:"is_owner_reply"`
	CreatedAt    int64  `json:"created_at"` // Unix ms UTC
	UpdatedAt    int64  `json:"updated_at"` // Unix ms UTC
}

type Thread struct {
	Comment Comment   `json:"comment"`
	Replies []Comment `json:"replies"`
}

type Summary struct {
	AvgRating   float64     `json:"avg_rating"`
	ReviewCount int         `json:"review_count"`
	Histogram   map[int]int `json:"histogram"`
}

// Создание отзыва (без parent_id) или ответа.
type CreateCommentRequest struct {
	ParentID string `json:"parent_id,omitempty" validate:"omitempty,max=64,printascii"`
	Text     string `json:"text"`
	Rating   *int   `json:"rating,omitempty"`
}

type UpdateCommentRequest struct {
	Text        *string `json:"text,omitempty"`
	Rating      *int    `json:"rating,omitempty"`
	ClearRating bool    `json:"clear_rating,omitempty" validate:"excluded_with=Rating"`
}

type CommentResponse struct {
	Comment Comment `json:"comment"`
	// RatingStale — комментарий сохранён, но рейтинг рецепта не пересчитан.
	RatingStale bool `json:"rating_stale,omitempty"`
}

type ListThreadsResponse struct {
	OwnerID string   `json:"owner_id"`
	Summary Summary  `json:"summary"`
	Threads []Thread `json:"threads"`
}

type ListRepliesResponse struct {
	Comments []Comment `json:"comments"`
}

type DeleteResponse struct {
	RatingStale bool `json:"rating_stale"`
}

type RatingResponse struct {
	AvgRating   float64 `json:"avg_rating"`
	ReviewCount int     `json:"review_count"`
}

// Snapshot — сообщение WebSocket-ленты: полный список комментариев рецепта.
type Snapshot struct {
	Type     string    `json:"type"`
	RecipeID string    `json:"recipe_id"`
	Comments []Comment `json:"comments"`
}

func commentFromModel(c models.Comment) Comment {
	return Comment{
		ID:       c.ID,
		RecipeID: c.RecipeID.String(),
		AuthorID: c.AuthorID.String(),
		Author: Author{
			Name:      c.Author.Name,
			Email:     c.Author.Email,
			AvatarURL: c.Author.AvatarURL,
		},
		Text:         c.Text,
		Rating:       c.Rating,
		ParentID:     c.ParentID,
		IsOwnerReply: c.IsOwnerReply,
		CreatedAt:    c.CreatedAt.UTC().UnixMilli(),
		UpdatedAt:    c.UpdatedAt.UTC().UnixMilli(),
	}
}

func commentsFromModels(cs []models.Comment) []Comment {
	out := make([]Comment, 0, len(cs))
	for _, c := range cs {
		out = append(out, commentFromModel(c))
	}

	return out
}

func overviewFromService(ov *service.Overview) ListThreadsResponse {
	threads := make([]Thread, 0, len(ov.Threads))
	for _, th := range ov.Threads {
		threads = append(threads, Thread{
			Comment: commentFromModel(th.Comment),
			Replies: commentsFromModels(th.Replies),
		})
	}

	return ListThreadsResponse{
		OwnerID: ov.OwnerID.String(),
		Summary: Summary{
			AvgRating:   ov.Summary.AvgRating,
			ReviewCount: ov.Summary.ReviewCount,
			Histogram:   ov.Summary.Histogram,
		},
		Threads: threads,
	}
}

func ratingFromResult(r rating.Result) RatingResponse {
	return RatingResponse{AvgRating: r.AvgRating, ReviewCount: r.ReviewCount}
}
