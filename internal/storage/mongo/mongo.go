// Package mongo — хранилище комментариев в MongoDB.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/config"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/feed"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/storage"
)

const (
	commentsCollection = "comments"
	defaultDBName      = "recipes"
)

// Mongo — тонкий адаптер над коллекцией комментариев.
type Mongo struct {
	cfg      *config.Config
	client   *mongodriver.Client
	db       *mongodriver.Database
	comments *mongodriver.Collection

	hub *feed.Hub

	mu       sync.RWMutex
	notifier feed.Notifier
}

var _ storage.Storage = (*Mongo)(nil)

// New подключается к MongoDB, проверяет соединение и создаёт индексы.
func New(ctx context.Context, cfg *config.Config, opts feed.Options) (*Mongo, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mongo: nil config")
	}

	if cfg.DB.URL == "" {
		return nil, fmt.Errorf("mongo: empty cfg.DB.URL")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(cfg.DB.URL))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(databaseFromURI(cfg.DB.URL))

	m := &Mongo{
		cfg:      cfg,
		client:   cli,
		db:       db,
		comments: db.Collection(commentsCollection),
	}
	m.hub = feed.NewHub(m, opts)
	m.notifier = m.hub

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, err
	}

	return m, nil
}

// Hub — локальная лента изменений хранилища.
func (m *Mongo) Hub() *feed.Hub { return m.hub }

// SetNotifier подменяет получателя сигналов об изменениях. nil возвращает локальный Hub.
func (m *Mongo) SetNotifier(n feed.Notifier) {
	if n == nil {
		n = m.hub
	}

	m.mu.Lock()
	m.notifier = n
	m.mu.Unlock()
}

// Ping проверяет доступность primary; вызывается из /healthz.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) notify() feed.Notifier {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.notifier
}

// ensureIndexes создаёт индексы под два запроса сервиса:
// - все комментарии рецепта: recipe_id + created_at(desc)
// - ответы на комментарий: parent_id + created_at(asc)
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	models := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "recipe_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("recipe_created_desc"),
		},
		{
			Keys:    bson.D{{Key: "parent_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("parent_created_asc"),
		},
	}

	_, err := m.comments.Indexes().CreateMany(ctx, models)
	if err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}
	return nil
}

// databaseFromURI извлекает имя базы из пути URI; без него — defaultDBName.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}
