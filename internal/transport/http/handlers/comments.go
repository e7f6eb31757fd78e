package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/service"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/transport/http/apierrors"
)

func (h *Handlers) ListThreads(w http.ResponseWriter, r *http.Request) {
	recipeID, err := recipeParam(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	ov, err := h.svc.ListThreads(r.Context(), recipeID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, overviewFromService(ov))
}

func (h *Handlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	recipeID, err := recipeParam(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in CreateCommentRequest
	if err := h.decodeValid(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	c, err := h.svc.Create(r.Context(), who, service.CreateInput{
		RecipeID: recipeID,
		ParentID: in.ParentID,
		Text:     in.Text,
		Rating:   in.Rating,
	})
	stale := errors.Is(err, service.ErrRatingStale)
	if err != nil && !stale {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CommentResponse{Comment: commentFromModel(*c), RatingStale: stale})
}

func (h *Handlers) GetComment(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.CommentByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CommentResponse{Comment: commentFromModel(*c)})
}

func (h *Handlers) ListReplies(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Replies(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListRepliesResponse{Comments: commentsFromModels(list)})
}

func (h *Handlers) UpdateComment(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in UpdateCommentRequest
	if err := h.decodeValid(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	c, err := h.svc.Update(r.Context(), who, chi.URLParam(r, "id"), models.CommentPatch{
		Text:        in.Text,
		Rating:      in.Rating,
		ClearRating: in.ClearRating,
	})
	stale := errors.Is(err, service.ErrRatingStale)
	if err != nil && !stale {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CommentResponse{Comment: commentFromModel(*c), RatingStale: stale})
}

// DeleteComment — 204 при полном успехе; 200 с rating_stale, если ветка
// удалена, а рейтинг не пересчитан.
func (h *Handlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	err = h.svc.DeleteWithReplies(r.Context(), who, chi.URLParam(r, "id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrRatingStale):
		writeJSON(w, http.StatusOK, DeleteResponse{RatingStale: true})
	default:
		apierrors.WriteError(w, r, err)
	}
}

func (h *Handlers) SyncRating(w http.ResponseWriter, r *http.Request) {
	recipeID, err := recipeParam(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.ResyncRating(r.Context(), recipeID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ratingFromResult(res))
}
