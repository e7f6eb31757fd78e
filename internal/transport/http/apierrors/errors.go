// apierrors стандартизирует ответы об ошибках HTTP-слоя.
// На вход — ошибка сервисного слоя, на выход:
//   - HTTP-статус;
//   - короткий стабильный code и безопасное message;
//   - details — список нарушений валидации, если они есть.
package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/cascade"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/policy"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/rating"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/service"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/validation"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

var (
	// ErrBadRequest — тело/параметры запроса не разобрались.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthenticated — для мутаций нужен X-User-Id.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// APIError — единый формат для фронта.
type APIError struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	RequestID string   `json:"request_id,omitempty"`
	Details   []string `json:"details,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку в HTTP-статус и тело.
// err == nil — программная ошибка вызова, отдаём 500/internal.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := classify(err)
	resp := ErrorResponse{Error: APIError{Code: code, Message: msg}}

	var verr *validation.Error
	if errors.As(err, &verr) {
		for _, v := range verr.Violations {
			resp.Error.Details = append(resp.Error.Details, v.Error())
		}
	}

	return status, resp
}

// WriteError — хелпер для HTTP-хендлеров и middleware.
// Добавляет request_id из заголовка X-Request-Id, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// classify — порядок важен: частичный каскад оборачивает ошибку хранилища,
// а ошибки валидации — ErrInvalidArgument.
func classify(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case errors.Is(err, policy.ErrOwnerCannotRate):
		return http.StatusForbidden, "owner_cannot_rate", "recipe owner cannot rate"
	case errors.Is(err, policy.ErrDuplicateRating):
		return http.StatusConflict, "duplicate_rating", "rating already submitted"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "permission_denied", "permission denied"
	case errors.Is(err, service.ErrRecipeNotFound):
		return http.StatusNotFound, "recipe_not_found", "recipe not found"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, cascade.ErrPartialCascade):
		return http.StatusInternalServerError, "partial_cascade", "delete partially applied, retry"
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	case errors.Is(err, rating.ErrWriteAggregate):
		return http.StatusServiceUnavailable, "rating_write_failed", "recipe rating could not be written"
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable", "service unavailable"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
