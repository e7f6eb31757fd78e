// Package redis разносит сигналы ленты изменений между экземплярами сервиса
// через Redis Pub/Sub: в канал пишется только id рецепта, снимок каждый
// экземпляр перечитывает сам.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/feed"
)

// DefaultChannel — канал по умолчанию.
const DefaultChannel = "recipes:comments:changed"

// Bridge — feed.Notifier, публикующий изменения в Redis, и подписчик,
// передающий их локальному Hub.
type Bridge struct {
	rdb     *redis.Client
	channel string
	local   feed.Notifier
	log     *slog.Logger
}

var _ feed.Notifier = (*Bridge)(nil)

// New создаёт мост. local получает все сигналы канала, включая собственные.
func New(rdb *redis.Client, channel string, local feed.Notifier, log *slog.Logger) *Bridge {
	if channel == "" {
		channel = DefaultChannel
	}

	if log == nil {
		log = slog.Default()
	}

	return &Bridge{rdb: rdb, channel: channel, local: local, log: log}
}

// Notify публикует id рецепта. Если Redis недоступен, сигнал доставляется
// хотя бы локальным подписчикам.
func (b *Bridge) Notify(ctx context.Context, recipeID uuid.UUID) {
	err := b.rdb.Publish(context.WithoutCancel(ctx), b.channel, recipeID.String()).Err()
	if err == nil {
		return
	}

	b.log.Warn("feed_publish_failed",
		slog.String("recipe_id", recipeID.String()),
		slog.String("err", err.Error()),
	)
	b.local.Notify(ctx, recipeID)
}

// Run слушает канал до отмены ctx.
func (b *Bridge) Run(ctx context.Context) error {
	const op = "feed/redis/Run"

	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return fmt.Errorf("%s: subscribe %q: %w", op, b.channel, err)
	}
	b.log.Info("feed_bridge_subscribed", slog.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("%s: channel closed", op)
			}
			b.handle(ctx, msg.Payload)
		}
	}
}

func (b *Bridge) handle(ctx context.Context, payload string) {
	id, err := uuid.Parse(strings.TrimSpace(payload))
	if err != nil {
		b.log.Warn("feed_bad_payload", slog.String("payload", payload))
		return
	}

	b.local.Notify(ctx, id)
}
