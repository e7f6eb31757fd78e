package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/IoanaFeraru/recipe-platform-sub000/pkg/log"
)

// UnaryLogging кладёт в контекст логгер с request_id/method/peer и после вызова
// пишет одну запись "grpc" с кодом и длительностью.
//
// Методы из quiet (обычно /grpc.health.v1.Health/Check, который k8s дёргает
// раз в несколько секунд) логируются на уровне Debug, остальные — Info.
func UnaryLogging(base *slog.Logger, quiet ...string) grpc.UnaryServerInterceptor {
	if base == nil {
		base = slog.Default()
	}

	quietSet := make(map[string]struct{}, len(quiet))
	for _, m := range quiet {
		quietSet[m] = struct{}{}
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()

		l := base.With(
			slog.String("request_id", requestID(ctx)),
			slog.String("method", info.FullMethod),
			slog.String("peer", peerAddr(ctx)),
		)

		resp, err := next(log.Into(ctx, l), req)

		lvl := slog.LevelInfo
		if _, ok := quietSet[info.FullMethod]; ok {
			lvl = slog.LevelDebug
		}

		l.LogAttrs(ctx, lvl, "grpc",
			slog.String("code", status.Code(err).String()),
			slog.Duration("dur", time.Since(start)),
		)

		return resp, err
	}
}

// requestID берёт x-request-id из metadata или генерирует новый UUID.
func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("x-request-id"); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}

	return uuid.NewString()
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p != nil && p.Addr != nil {
		return p.Addr.String()
	}

	return "-"
}
