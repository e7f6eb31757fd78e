package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/cascade"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/metrics"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/policy"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/rating"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/threads"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/validation"
	"github.com/IoanaFeraru/recipe-platform-sub000/pkg/log"
)

// CreateInput — создание отзыва (ParentID пуст) или ответа.
type CreateInput struct {
	RecipeID uuid.UUID
	ParentID string
	Text     string
	Rating   *int
}

// Overview — всё, что нужно для отрисовки комментариев рецепта.
type Overview struct {
	Threads []models.Thread
	Summary models.Summary
	OwnerID uuid.UUID
}

// Create — создание отзыва или ответа от имени who.
//
// Порядок:
//   - валидация текста и оценки (у ответа оценка отбрасывается);
//   - владелец рецепта; у ответа — родитель, который должен быть отзывом того же рецепта;
//   - правила оценок (владелец не оценивает, один оценённый отзыв на автора);
//   - запись; пересчёт рейтинга, если появился оценённый отзыв.
//
// Ошибки: ErrInvalidArgument (+ нарушения validation), policy.ErrOwnerCannotRate,
// policy.ErrDuplicateRating, ErrRecipeNotFound, ErrNotFound (нет родителя),
// ErrUnavailable. При ErrRatingStale комментарий создан и возвращается.
func (s *Service) Create(ctx context.Context, who models.Identity, in CreateInput) (*models.Comment, error) {
	const op = "service/comments/Create"

	in.ParentID = strings.TrimSpace(in.ParentID)
	lg := log.From(ctx).With(
		"op", op,
		"user_id", who.UserID.String(),
		"recipe_id", in.RecipeID.String(),
		"parent_id", in.ParentID,
	)

	if who.UserID == uuid.Nil {
		lg.Warn("invalid argument: empty user_id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	if in.RecipeID == uuid.Nil {
		lg.Warn("invalid argument: empty recipe_id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	isReply := in.ParentID != ""
	if isReply {
		in.Rating = nil
	}

	if err := validation.Validate(in.Text, in.Rating); err != nil {
		lg.Warn("validation failed", "err", err)
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidArgument, err)
	}

	owner, err := s.ownerOf(ctx, lg, op, in.RecipeID)
	if err != nil {
		return nil, err
	}

	if isReply {
		parent, err := s.store.CommentByID(ctx, in.ParentID)
		if err != nil {
			return nil, storeErr(lg, op, err)
		}

		if parent.RecipeID != in.RecipeID {
			lg.Warn("invalid argument: parent belongs to another recipe")
			return nil, fmt.Errorf("%s: %w: parent belongs to another recipe", op, ErrInvalidArgument)
		}

		if !parent.IsTopLevel() {
			lg.Warn("invalid argument: parent is a reply")
			return nil, fmt.Errorf("%s: %w: parent is a reply", op, ErrInvalidArgument)
		}
	}

	withRating := in.Rating != nil
	if withRating {
		var existing []models.Comment
		if who.UserID != owner {
			existing, err = s.store.ByResource(ctx, in.RecipeID)
			if err != nil {
				return nil, storeErr(lg, op, err)
			}
		}

		if err := policy.CanSubmitRating(existing, who.UserID, owner, true, true); err != nil {
			lg.Warn("rating rejected", "err", err)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	created, err := s.store.Create(ctx, models.CommentInput{
		RecipeID:     in.RecipeID,
		AuthorID:     who.UserID,
		Author:       who.Author,
		Text:         strings.TrimSpace(in.Text),
		Rating:       in.Rating,
		ParentID:     in.ParentID,
		IsOwnerReply: who.UserID == owner,
	})
	if err != nil {
		return nil, storeErr(lg, op, err)
	}

	metrics.CommentsCreated.WithLabelValues(kindOf(created)).Inc()
	lg.Info("comment_created", "id", created.ID, "rated", created.Rating != nil)

	if rating.Qualifies(*created, owner) {
		if err := s.sync(ctx, lg, op, in.RecipeID, owner); err != nil {
			return created, err
		}
	}

	return created, nil
}

func kindOf(c *models.Comment) string {
	switch {
	case !c.IsTopLevel():
		return metrics.KindReply
	case c.IsOwnerReply:
		return metrics.KindOwnerReview
	default:
		return metrics.KindReview
	}
}

// Update — правка текста и/или оценки собственным автором.
//
// Оценка в патче ответа отбрасывается. Добавление оценки к отзыву без неё
// проверяется как новый оценённый отзыв; смена оценки того же отзыва
// ErrDuplicateRating не даёт. Рейтинг пересчитывается только при изменении оценки.
func (s *Service) Update(ctx context.Context, who models.Identity, id string, patch models.CommentPatch) (*models.Comment, error) {
	const op = "service/comments/Update"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "user_id", who.UserID.String(), "id", id)

	if who.UserID == uuid.Nil || id == "" {
		lg.Warn("invalid argument: empty user_id or id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	if patch.Rating != nil && patch.ClearRating {
		lg.Warn("invalid argument: rating and clear_rating together")
		return nil, fmt.Errorf("%s: %w: rating and clear_rating are exclusive", op, ErrInvalidArgument)
	}

	cur, err := s.store.CommentByID(ctx, id)
	if err != nil {
		return nil, storeErr(lg, op, err)
	}

	if cur.AuthorID != who.UserID {
		lg.Warn("forbidden: not the author")
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if !cur.IsTopLevel() {
		patch.Rating = nil
		patch.ClearRating = false
	}

	if patch.Empty() {
		lg.Warn("invalid argument: empty patch")
		return nil, fmt.Errorf("%s: %w: nothing to update", op, ErrInvalidArgument)
	}

	text := cur.Text
	if patch.Text != nil {
		trimmed := strings.TrimSpace(*patch.Text)
		patch.Text = &trimmed
		text = trimmed
	}

	if err := validation.Validate(text, patch.Rating); err != nil {
		lg.Warn("validation failed", "err", err)
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidArgument, err)
	}

	ratingChanged := ratingChanges(cur.Rating, patch)

	var owner uuid.UUID
	if ratingChanged {
		owner, err = s.ownerOf(ctx, lg, op, cur.RecipeID)
		if err != nil {
			return nil, err
		}
	}

	if patch.Rating != nil {
		isNew := cur.Rating == nil

		var existing []models.Comment
		if isNew && who.UserID != owner {
			all, err := s.store.ByResource(ctx, cur.RecipeID)
			if err != nil {
				return nil, storeErr(lg, op, err)
			}

			existing = excluding(all, cur.ID)
		}

		if err := policy.CanSubmitRating(existing, who.UserID, owner, true, isNew); err != nil {
			lg.Warn("rating rejected", "err", err)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, storeErr(lg, op, err)
	}

	lg.Info("comment_updated", "rating_changed", ratingChanged)

	if ratingChanged {
		if err := s.sync(ctx, lg, op, cur.RecipeID, owner); err != nil {
			return updated, err
		}
	}

	return updated, nil
}

// ratingChanges — меняет ли патч оценку относительно current.
func ratingChanges(current *int, patch models.CommentPatch) bool {
	switch {
	case patch.ClearRating:
		return current != nil
	case patch.Rating != nil:
		return current == nil || *current != *patch.Rating
	default:
		return false
	}
}

func excluding(list []models.Comment, id string) []models.Comment {
	out := make([]models.Comment, 0, len(list))
	for _, c := range list {
		if c.ID != id {
			out = append(out, c)
		}
	}

	return out
}

// DeleteWithReplies удаляет комментарий автора вместе со всеми ответами.
//
// Ошибки: ErrForbidden, ErrNotFound, ErrUnavailable (ничего не удалено),
// cascade.ErrPartialCascade (часть удалена, повтор безопасен), ErrRatingStale
// (ветка удалена, пересчёт не удался).
func (s *Service) DeleteWithReplies(ctx context.Context, who models.Identity, id string) error {
	const op = "service/comments/DeleteWithReplies"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "user_id", who.UserID.String(), "id", id)

	if who.UserID == uuid.Nil || id == "" {
		lg.Warn("invalid argument: empty user_id or id")
		return fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	cur, err := s.store.CommentByID(ctx, id)
	if err != nil {
		return storeErr(lg, op, err)
	}

	if cur.AuthorID != who.UserID {
		lg.Warn("forbidden: not the author")
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	n, err := s.deleter.DeleteWithReplies(ctx, id)
	metrics.CommentsDeleted.Add(float64(n))
	if err != nil {
		if errors.Is(err, cascade.ErrPartialCascade) {
			lg.Error("cascade stopped part way", "deleted", n, "err", err)
			return fmt.Errorf("%s: %w", op, err)
		}

		return storeErr(lg, op, err)
	}

	lg.Info("comment_deleted", "deleted", n)

	if !cur.HasRating() || cur.IsOwnerReply {
		return nil
	}

	owner, err := s.ownerOf(ctx, lg, op, cur.RecipeID)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrRatingStale, err)
	}

	if !rating.Qualifies(*cur, owner) {
		return nil
	}

	return s.sync(ctx, lg, op, cur.RecipeID, owner)
}

// CommentByID — комментарий по идентификатору.
func (s *Service) CommentByID(ctx context.Context, id string) (*models.Comment, error) {
	const op = "service/comments/CommentByID"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "id", id)

	if id == "" {
		lg.Warn("invalid argument: empty id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	c, err := s.store.CommentByID(ctx, id)
	if err != nil {
		return nil, storeErr(lg, op, err)
	}

	return c, nil
}

// Replies — прямые ответы на комментарий, сначала старые.
func (s *Service) Replies(ctx context.Context, parentID string) ([]models.Comment, error) {
	const op = "service/comments/Replies"

	parentID = strings.TrimSpace(parentID)
	lg := log.From(ctx).With("op", op, "parent_id", parentID)

	if parentID == "" {
		lg.Warn("invalid argument: empty parent_id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	if _, err := s.store.CommentByID(ctx, parentID); err != nil {
		return nil, storeErr(lg, op, err)
	}

	out, err := s.store.Replies(ctx, parentID)
	if err != nil {
		return nil, storeErr(lg, op, err)
	}

	return out, nil
}

// ListThreads — ветки рецепта (отзывы, сначала новые, с ответами по порядку),
// сводка рейтинга и владелец. Всё сводится из одного чтения хранилища.
func (s *Service) ListThreads(ctx context.Context, recipeID uuid.UUID) (*Overview, error) {
	const op = "service/comments/ListThreads"

	lg := log.From(ctx).With("op", op, "recipe_id", recipeID.String())

	if recipeID == uuid.Nil {
		lg.Warn("invalid argument: empty recipe_id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	owner, err := s.ownerOf(ctx, lg, op, recipeID)
	if err != nil {
		return nil, err
	}

	all, err := s.store.ByResource(ctx, recipeID)
	if err != nil {
		return nil, storeErr(lg, op, err)
	}

	return &Overview{
		Threads: threads.Assemble(all),
		Summary: rating.Aggregate(all, owner),
		OwnerID: owner,
	}, nil
}

// ResyncRating — пересчёт рейтинга по запросу. Идемпотентен.
func (s *Service) ResyncRating(ctx context.Context, recipeID uuid.UUID) (rating.Result, error) {
	const op = "service/comments/ResyncRating"

	lg := log.From(ctx).With("op", op, "recipe_id", recipeID.String())

	if recipeID == uuid.Nil {
		lg.Warn("invalid argument: empty recipe_id")
		return rating.Result{}, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	owner, err := s.ownerOf(ctx, lg, op, recipeID)
	if err != nil {
		return rating.Result{}, err
	}

	res, err := s.syncer.Sync(ctx, recipeID, owner)
	if err != nil {
		return res, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	lg.Info("rating_resynced", "avg_rating", res.AvgRating, "review_count", res.ReviewCount)

	return res, nil
}

// Subscribe подписывает fn на снимки комментариев рецепта.
// Первый снимок приходит сразу; отписка — возвращённой функцией или отменой ctx.
func (s *Service) Subscribe(ctx context.Context, recipeID uuid.UUID, fn func([]models.Comment)) (func(), error) {
	const op = "service/comments/Subscribe"

	lg := log.From(ctx).With("op", op, "recipe_id", recipeID.String())

	if recipeID == uuid.Nil || fn == nil {
		lg.Warn("invalid argument: empty recipe_id or callback")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	if _, err := s.ownerOf(ctx, lg, op, recipeID); err != nil {
		return nil, err
	}

	cancel, err := s.store.Subscribe(ctx, recipeID, fn)
	if err != nil {
		return nil, storeErr(lg, op, err)
	}

	return cancel, nil
}
