// Package models содержит доменные сущности сервиса комментариев к рецептам.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment — отзыв или ответ на рецепт.
// Важно:
//   - ID — непрозрачный идентификатор, выдаётся хранилищем (ObjectID в MongoDB, UUID в памяти).
//   - RecipeID/AuthorID — UUID из смежных сервисов; неизменяемы после создания.
//   - Author — денормализованные поля для отображения, снимаются в момент записи.
//   - Rating — 1..5 или nil; имеет смысл только у корневого комментария.
//   - ParentID пуст у корня; у ответа ссылается на корневой комментарий (ровно один уровень).
//   - IsOwnerReply — автор совпадал с владельцем рецепта на момент создания.
//   - CreatedAt — единственный ключ сортировки.
type Comment struct {
	ID           string
	RecipeID     uuid.UUID
	AuthorID     uuid.UUID
	Author       AuthorDisplay
	Text         string
	Rating       *int
	ParentID     string
	IsOwnerReply bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTopLevel сообщает, является ли комментарий корневым (отзывом).
func (c Comment) IsTopLevel() bool {
	return c.ParentID == ""
}

// HasRating — корневой комментарий с выставленной оценкой.
func (c Comment) HasRating() bool {
	return c.IsTopLevel() && c.Rating != nil
}

// AuthorDisplay — то, что показываем рядом с комментарием.
type AuthorDisplay struct {
	Name      string
	Email     string
	AvatarURL string
}

// CommentInput — данные для создания комментария.
// ID, CreatedAt и UpdatedAt проставляет хранилище.
type CommentInput struct {
	RecipeID     uuid.UUID
	AuthorID     uuid.UUID
	Author       AuthorDisplay
	Text         string
	Rating       *int
	ParentID     string
	IsOwnerReply bool
}

// CommentPatch — изменяемые поля комментария.
// Text == nil — текст не трогаем; Rating == nil — оценку не трогаем,
// если только не выставлен ClearRating.
type CommentPatch struct {
	Text        *string
	Rating      *int
	ClearRating bool
}

// Empty — патч ничего не меняет.
func (p CommentPatch) Empty() bool {
	return p.Text == nil && p.Rating == nil && !p.ClearRating
}

// Thread — корневой комментарий и его ответы в хронологическом порядке.
type Thread struct {
	Comment Comment
	Replies []Comment
}

// Identity — уже проверенный шлюзом пользователь, от имени которого идёт запрос.
type Identity struct {
	UserID uuid.UUID
	Author AuthorDisplay
}

// IntPtr — удобный помощник для литералов оценок.
func IntPtr(v int) *int {
	return &v
}
