package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/transport/http/apierrors"
	logctx "github.com/IoanaFeraru/recipe-platform-sub000/pkg/log"
)

// Заголовки, которыми шлюз передаёт уже проверенного пользователя.
const (
	HeaderUserID     = "X-User-Id"
	HeaderUserName   = "X-User-Name"
	HeaderUserEmail  = "X-User-Email"
	HeaderUserAvatar = "X-User-Avatar"
)

type identityKey struct{}

type identityHeaders struct {
	UserID string `validate:"required,uuid"`
	Name   string `validate:"max=100"`
	Email  string `validate:"omitempty,email,max=254"`
	Avatar string `validate:"omitempty,url,max=2048"`
}

// Identity разбирает заголовки X-User-*. Без X-User-Id запрос идёт дальше
// анонимно (чтение); битые заголовки — 400. Аутентификации здесь нет:
// заголовкам доверяем, их выставляет шлюз.
func Identity(v *validator.Validate) Middleware {
	if v == nil {
		v = validator.New()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := identityHeaders{
				UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
				Name:   strings.TrimSpace(r.Header.Get(HeaderUserName)),
				Email:  strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
				Avatar: strings.TrimSpace(r.Header.Get(HeaderUserAvatar)),
			}

			if h.UserID == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := uuid.Parse(h.UserID)
			if err == nil {
				err = v.Struct(h)
			}
			if err != nil {
				logctx.From(r.Context()).Warn("identity_rejected", "err", err.Error())
				apierrors.WriteError(w, r, fmt.Errorf("identity headers: %w", apierrors.ErrBadRequest))
				return
			}

			who := models.Identity{
				UserID: userID,
				Author: models.AuthorDisplay{Name: h.Name, Email: h.Email, AvatarURL: h.Avatar},
			}

			ctx := context.WithValue(r.Context(), identityKey{}, who)
			ctx = logctx.With(ctx, "user_id", who.UserID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom — пользователь запроса, если шлюз его передал.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	who, ok := ctx.Value(identityKey{}).(models.Identity)
	return who, ok
}
