// Package validation проверяет текст и оценку комментария до любых обращений к хранилищу.
package validation

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
)

// MaxTextLen — предел длины текста (в символах, после TrimSpace).
const MaxTextLen = 1000

var (
	// ErrEmptyText — пустой или состоящий из пробелов текст.
	ErrEmptyText = errors.New("text is empty")
	// ErrTextTooLong — текст длиннее MaxTextLen.
	ErrTextTooLong = errors.New("text is too long")
	// ErrRatingOutOfRange — оценка вне [1,5].
	ErrRatingOutOfRange = errors.New("rating out of range")
)

// Error собирает все найденные нарушения сразу.
type Error struct {
	Violations []error
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Error())
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap позволяет errors.Is/As видеть каждое нарушение.
func (e *Error) Unwrap() []error {
	return e.Violations
}

// Validate проверяет текст и (необязательную) оценку.
// Возвращает nil или *Error со всеми нарушениями; проверки не прерываются на первой.
func Validate(text string, rating *int) error {
	var violations []error

	if v := checkText(text); v != nil {
		violations = append(violations, v)
	}

	if rating != nil {
		if v := CheckRating(*rating); v != nil {
			violations = append(violations, v)
		}
	}

	if len(violations) == 0 {
		return nil
	}

	return &Error{Violations: violations}
}

// CheckRating — одиночная проверка границ оценки.
func CheckRating(r int) error {
	if r < models.MinRating || r > models.MaxRating {
		return ErrRatingOutOfRange
	}

	return nil
}

func checkText(text string) error {
	trimmed := strings.TrimSpace(text)

	switch n := utf8.RuneCountInString(trimmed); {
	case n == 0:
		return ErrEmptyText
	case n > MaxTextLen:
		return ErrTextTooLong
	}

	return nil
}
