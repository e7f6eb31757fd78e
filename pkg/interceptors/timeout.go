// interceptors — серверные unary-интерсепторы административного gRPC-порта
// (health-проверки, метрики). Бизнес-API сервиса живёт в HTTP.
package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

// WithTimeout навешивает дедлайн d на входящий вызов, если клиент не прислал свой.
// d <= 0 отключает интерсептор; чужой дедлайн никогда не продлевается.
func WithTimeout(d time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if _, has := ctx.Deadline(); has || d <= 0 {
			return next(ctx, req)
		}

		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		return next(ctx, req)
	}
}
