package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/storage"
)

// commentDoc — представление комментария в коллекции.
// UUID храним строками: так их можно читать из mongosh и других сервисов.
type commentDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	RecipeID     string             `bson:"recipe_id"`
	AuthorID     string             `bson:"author_id"`
	Author       authorDoc          `bson:"author"`
	Text         string             `bson:"text"`
	Rating       *int               `bson:"rating"`
	ParentID     string             `bson:"parent_id"`
	IsOwnerReply bool               `bson:"is_owner_reply"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

type authorDoc struct {
	Name      string `bson:"name"`
	Email     string `bson:"email,omitempty"`
	AvatarURL string `bson:"avatar_url,omitempty"`
}

func (d commentDoc) model() (models.Comment, error) {
	recipeID, err := uuid.Parse(d.RecipeID)
	if err != nil {
		return models.Comment{}, fmt.Errorf("recipe_id: %w", err)
	}

	authorID, err := uuid.Parse(d.AuthorID)
	if err != nil {
		return models.Comment{}, fmt.Errorf("author_id: %w", err)
	}

	return models.Comment{
		ID:       d.ID.Hex(),
		RecipeID: recipeID,
		AuthorID: authorID,
		Author: models.AuthorDisplay{
			Name:      d.Author.Name,
			Email:     d.Author.Email,
			AvatarURL: d.Author.AvatarURL,
		},
		Text:         d.Text,
		Rating:       d.Rating,
		ParentID:     d.ParentID,
		IsOwnerReply: d.IsOwnerReply,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}, nil
}

// MongoDB DateTime хранит миллисекунды.
func toMS(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, storage.ErrUnavailable, err)
}

// Create вставляет комментарий одним документом.
func (m *Mongo) Create(ctx context.Context, in models.CommentInput) (*models.Comment, error) {
	const op = "storage/mongo/Create"

	now := toMS(time.Now())
	doc := commentDoc{
		RecipeID: in.RecipeID.String(),
		AuthorID: in.AuthorID.String(),
		Author: authorDoc{
			Name:      in.Author.Name,
			Email:     in.Author.Email,
			AvatarURL: in.Author.AvatarURL,
		},
		Text:         in.Text,
		Rating:       in.Rating,
		ParentID:     strings.TrimSpace(in.ParentID),
		IsOwnerReply: in.IsOwnerReply,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if doc.IsOwnerReply || doc.ParentID != "" {
		doc.Rating = nil
	}

	res, err := m.comments.InsertOne(ctx, doc)
	if err != nil {
		return nil, unavailable(op, err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%s: inserted id type", op)
	}
	doc.ID = oid

	out, err := doc.model()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m.notify().Notify(ctx, out.RecipeID)

	return &out, nil
}

// ByResource — все комментарии рецепта, сначала новые.
func (m *Mongo) ByResource(ctx context.Context, recipeID uuid.UUID) ([]models.Comment, error) {
	const op = "storage/mongo/ByResource"

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	return m.find(ctx, op, bson.D{{Key: "recipe_id", Value: recipeID.String()}}, findOpts)
}

// Replies — прямые ответы, сначала старые.
func (m *Mongo) Replies(ctx context.Context, parentID string) ([]models.Comment, error) {
	const op = "storage/mongo/Replies"

	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return []models.Comment{}, nil
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	return m.find(ctx, op, bson.D{{Key: "parent_id", Value: parentID}}, findOpts)
}

func (m *Mongo) find(ctx context.Context, op string, filter bson.D, opts *options.FindOptions) ([]models.Comment, error) {
	cur, err := m.comments.Find(ctx, filter, opts)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer cur.Close(ctx)

	items := make([]models.Comment, 0)
	for cur.Next(ctx) {
		var doc commentDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}

		c, err := doc.model()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		items = append(items, c)
	}

	if err := cur.Err(); err != nil {
		return nil, unavailable(op, err)
	}

	return items, nil
}

// CommentByID возвращает комментарий по идентификатору.
// Некорректный формат id трактуется как «нет такой записи».
func (m *Mongo) CommentByID(ctx context.Context, id string) (*models.Comment, error) {
	const op = "storage/mongo/CommentByID"

	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var doc commentDoc
	if err := m.comments.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, unavailable(op, err)
	}

	out, err := doc.model()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

// Update меняет текст и/или оценку одной операцией и возвращает новую версию.
func (m *Mongo) Update(ctx context.Context, id string, patch models.CommentPatch) (*models.Comment, error) {
	const op = "storage/mongo/Update"

	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	set := bson.D{{Key: "updated_at", Value: toMS(time.Now())}}
	if patch.Text != nil {
		set = append(set, bson.E{Key: "text", Value: *patch.Text})
	}

	switch {
	case patch.ClearRating:
		set = append(set, bson.E{Key: "rating", Value: nil})
	case patch.Rating != nil:
		set = append(set, bson.E{Key: "rating", Value: *patch.Rating})
	}

	var doc commentDoc
	err = m.comments.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, unavailable(op, err)
	}

	out, err := doc.model()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m.notify().Notify(ctx, out.RecipeID)

	return &out, nil
}

// Delete удаляет ровно одну запись (жёстко, без каскада).
func (m *Mongo) Delete(ctx context.Context, id string) error {
	const op = "storage/mongo/Delete"

	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var doc commentDoc
	err = m.comments.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: oid}},
		options.FindOneAndDelete().SetProjection(bson.D{{Key: "recipe_id", Value: 1}}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return unavailable(op, err)
	}

	if recipeID, err := uuid.Parse(doc.RecipeID); err == nil {
		m.notify().Notify(ctx, recipeID)
	}

	return nil
}

// Subscribe подписывает fn на изменения рецепта.
func (m *Mongo) Subscribe(ctx context.Context, recipeID uuid.UUID, fn func([]models.Comment)) (func(), error) {
	return m.hub.Subscribe(ctx, recipeID, fn)
}
