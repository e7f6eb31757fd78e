package interceptors

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/IoanaFeraru/recipe-platform-sub000/pkg/log"
)

const healthCheck = "/grpc.health.v1.Health/Check"

// capHandler — slog.Handler, запоминающий последнюю запись и её атрибуты.
type capHandler struct {
	base    []slog.Attr
	lastMsg string
	lastLvl slog.Level
	attrs   map[string]any
	count   map[string]int
}

func (h *capHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capHandler) Handle(_ context.Context, r slog.Record) error {
	out := make(map[string]any, len(h.base)+4)
	for _, a := range h.base {
		out[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.Any()
		return true
	})
	if h.count == nil {
		h.count = make(map[string]int)
	}
	h.count[r.Message]++
	h.lastMsg = r.Message
	h.lastLvl = r.Level
	h.attrs = out
	return nil
}

func (h *capHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.base = append(h.base, attrs...)
	return h
}

func (h *capHandler) WithGroup(string) slog.Handler { return h }

func okHandler(context.Context, any) (any, error) { return "ok", nil }

func TestUnaryLogging_UsesRequestIDAndPeer(t *testing.T) {
	t.Parallel()

	h := &capHandler{}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-request-id", "rid-1"))
	ctx = peer.NewContext(ctx, &peer.Peer{Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 50051}})

	info := &grpc.UnaryServerInfo{FullMethod: "/admin.Admin/Ping"}
	resp, err := UnaryLogging(slog.New(h), healthCheck)(ctx, "req", info, okHandler)

	require.NoError(t, err)
	require.Equal(t, "ok", resp)
	require.Equal(t, "grpc", h.lastMsg)
	require.Equal(t, slog.LevelInfo, h.lastLvl)
	require.Equal(t, "rid-1", h.attrs["request_id"])
	require.Equal(t, "10.0.0.7:50051", h.attrs["peer"])
	require.Equal(t, "OK", h.attrs["code"])
	_, hasDur := h.attrs["dur"]
	require.True(t, hasDur)
}

func TestUnaryLogging_QuietMethodLogsAtDebug(t *testing.T) {
	t.Parallel()

	h := &capHandler{}
	info := &grpc.UnaryServerInfo{FullMethod: healthCheck}

	_, err := UnaryLogging(slog.New(h), healthCheck)(context.Background(), "req", info, okHandler)
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, h.lastLvl)
	require.Equal(t, "-", h.attrs["peer"])
}

func TestUnaryLogging_GeneratesRequestIDAndLogsErrorCode(t *testing.T) {
	t.Parallel()

	h := &capHandler{}
	info := &grpc.UnaryServerInfo{FullMethod: "/admin.Admin/Fail"}

	_, err := UnaryLogging(slog.New(h))(context.Background(), "req", info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.Unavailable, "db down")
	})
	require.Error(t, err)
	require.Equal(t, "Unavailable", h.attrs["code"])

	rid, _ := h.attrs["request_id"].(string)
	_, parseErr := uuid.Parse(rid)
	require.NoError(t, parseErr)
}

func TestUnaryLogging_LoggerReachesHandler(t *testing.T) {
	t.Parallel()

	h := &capHandler{}
	info := &grpc.UnaryServerInfo{FullMethod: "/admin.Admin/Probe"}

	_, err := UnaryLogging(slog.New(h))(context.Background(), "req", info, func(ctx context.Context, _ any) (any, error) {
		log.From(ctx).Info("inside")
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, h.count["inside"])
}

func TestRecover_ConvertsPanicToInternal(t *testing.T) {
	t.Parallel()

	h := &capHandler{}
	info := &grpc.UnaryServerInfo{FullMethod: "/admin.Admin/Boom"}

	resp, err := Recover(slog.New(h))(context.Background(), "req", info, func(context.Context, any) (any, error) {
		panic("boom")
	})

	require.Nil(t, resp)
	require.Equal(t, codes.Internal, status.Code(err))
	require.Equal(t, "panic_recovered", h.lastMsg)
	require.Equal(t, slog.LevelError, h.lastLvl)
	require.Equal(t, info.FullMethod, h.attrs["method"])
	require.NotEmpty(t, h.attrs["stack"])
}

func TestRecover_PassThrough(t *testing.T) {
	t.Parallel()

	h := &capHandler{}
	resp, err := Recover(slog.New(h))(context.Background(), "req", &grpc.UnaryServerInfo{}, okHandler)

	require.NoError(t, err)
	require.Equal(t, "ok", resp)
	require.Empty(t, h.lastMsg)
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	info := &grpc.UnaryServerInfo{FullMethod: healthCheck}

	t.Run("sets deadline when absent", func(t *testing.T) {
		_, err := WithTimeout(30*time.Millisecond)(context.Background(), "req", info, func(ctx context.Context, _ any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("keeps caller deadline", func(t *testing.T) {
		parent, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		want, _ := parent.Deadline()

		_, err := WithTimeout(time.Second)(parent, "req", info, func(ctx context.Context, _ any) (any, error) {
			got, ok := ctx.Deadline()
			require.True(t, ok)
			require.WithinDuration(t, want, got, time.Millisecond)
			return nil, nil
		})
		require.NoError(t, err)
	})

	t.Run("zero disables", func(t *testing.T) {
		_, err := WithTimeout(0)(context.Background(), "req", info, func(ctx context.Context, _ any) (any, error) {
			_, ok := ctx.Deadline()
			require.False(t, ok)
			return nil, nil
		})
		require.NoError(t, err)
	})
}
