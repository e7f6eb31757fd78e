// Package feed — лента изменений: подписчики рецепта получают полный список
// его комментариев после каждого зафиксированного изменения.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/metrics"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
)

const (
	defaultBuffer       = 16
	defaultFetchTimeout = 5 * time.Second
)

// Source — откуда Hub берёт актуальный список комментариев рецепта.
type Source interface {
	ByResource(ctx context.Context, recipeID uuid.UUID) ([]models.Comment, error)
}

// Notifier — сигнал «комментарии рецепта изменились».
// Хранилища вызывают его после каждой успешной мутации.
type Notifier interface {
	Notify(ctx context.Context, recipeID uuid.UUID)
}

// Options — настройки Hub.
type Options struct {
	// Buffer — сколько снимков ждут доставки у одного подписчика.
	// При переполнении выбрасывается самый старый.
	Buffer int
	// FetchTimeout — дедлайн на перечитывание списка при публикации.
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

// Hub хранит подписки по рецептам и раздаёт им снимки.
//
// Публикации одного рецепта сериализованы: чтение снимка и постановка в очереди
// подписчиков идут под общим мьютексом топика, поэтому каждый подписчик видит
// снимки в порядке фиксации. У каждого подписчика своя горутина доставки,
// медленный колбэк тормозит только его.
type Hub struct {
	src          Source
	buffer       int
	fetchTimeout time.Duration
	log          *slog.Logger

	mu     sync.Mutex
	topics map[uuid.UUID]*topic
	nextID uint64
}

type topic struct {
	refs int // под Hub.mu: подписчики, включая ещё не зарегистрированных

	mu   sync.Mutex
	subs map[uint64]*subscriber
}

type subscriber struct {
	fn    func([]models.Comment)
	queue chan []models.Comment
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewHub создаёт Hub поверх src.
func NewHub(src Source, opts Options) *Hub {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}

	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Hub{
		src:          src,
		buffer:       opts.Buffer,
		fetchTimeout: opts.FetchTimeout,
		log:          opts.Logger,
		topics:       make(map[uuid.UUID]*topic),
	}
}

// Subscribe регистрирует fn и сразу ставит ему в очередь текущий снимок.
//
// Возвращённая функция идемпотентна: после её возврата fn больше не вызывается,
// горутина доставки завершена. Вызывать её изнутри fn нельзя (она ждёт
// завершения доставки). Отмена ctx отписывает автоматически.
func (h *Hub) Subscribe(ctx context.Context, recipeID uuid.UUID, fn func([]models.Comment)) (func(), error) {
	const op = "feed/Hub/Subscribe"

	if fn == nil {
		return nil, fmt.Errorf("%s: nil callback", op)
	}

	sub := &subscriber{
		fn:    fn,
		queue: make(chan []models.Comment, h.buffer),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	t, ok := h.topics[recipeID]
	if !ok {
		t = &topic{subs: make(map[uint64]*subscriber)}
		h.topics[recipeID] = t
	}
	t.refs++
	h.nextID++
	id := h.nextID
	h.mu.Unlock()

	t.mu.Lock()
	snap, err := h.fetch(ctx, recipeID)
	if err != nil {
		t.mu.Unlock()
		h.release(recipeID, t)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t.subs[id] = sub
	sub.offer(snap)
	t.mu.Unlock()

	go sub.run()
	metrics.FeedSubscribers.Inc()
	h.log.Debug("feed_subscribed", slog.String("recipe_id", recipeID.String()), slog.Uint64("sub", id))

	var (
		afterMu   sync.Mutex
		stopAfter func() bool
	)
	unsubscribe := func() {
		sub.once.Do(func() {
			afterMu.Lock()
			if stopAfter != nil {
				stopAfter()
			}
			afterMu.Unlock()

			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
			h.release(recipeID, t)

			close(sub.stop)
			<-sub.done

			metrics.FeedSubscribers.Dec()
			h.log.Debug("feed_unsubscribed", slog.String("recipe_id", recipeID.String()), slog.Uint64("sub", id))
		})
	}
	afterMu.Lock()
	stopAfter = context.AfterFunc(ctx, unsubscribe)
	afterMu.Unlock()

	return unsubscribe, nil
}

// Notify перечитывает список комментариев рецепта и раздаёт его подписчикам.
// Без подписчиков ничего не делает. Отмена ctx вызывающего не прерывает
// публикацию уже зафиксированного изменения.
func (h *Hub) Notify(ctx context.Context, recipeID uuid.UUID) {
	h.mu.Lock()
	t, ok := h.topics[recipeID]
	h.mu.Unlock()
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.subs) == 0 {
		return
	}

	snap, err := h.fetch(context.WithoutCancel(ctx), recipeID)
	if err != nil {
		h.log.Warn("feed_fetch_failed",
			slog.String("recipe_id", recipeID.String()),
			slog.String("err", err.Error()),
		)
		return
	}

	for _, s := range t.subs {
		s.offer(snap)
	}
}

// Subscribers — число активных подписок на рецепт.
func (h *Hub) Subscribers(recipeID uuid.UUID) int {
	h.mu.Lock()
	t, ok := h.topics[recipeID]
	h.mu.Unlock()
	if !ok {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.subs)
}

func (h *Hub) fetch(ctx context.Context, recipeID uuid.UUID) ([]models.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, h.fetchTimeout)
	defer cancel()

	return h.src.ByResource(ctx, recipeID)
}

// release снимает ссылку на топик и убирает его, когда ссылок не осталось.
func (h *Hub) release(recipeID uuid.UUID, t *topic) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t.refs--
	if t.refs == 0 && h.topics[recipeID] == t {
		delete(h.topics, recipeID)
	}
}

// offer кладёт снимок в очередь. Вызывается только под мьютексом топика,
// поэтому место после выброса старого снимка гарантированно есть.
func (s *subscriber) offer(snap []models.Comment) {
	select {
	case s.queue <- snap:
		return
	default:
	}

	select {
	case <-s.queue:
		metrics.FeedSnapshotsDropped.Inc()
	default:
	}

	s.queue <- snap
}

func (s *subscriber) run() {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case snap := <-s.queue:
			select {
			case <-s.stop:
				return
			default:
			}
			s.fn(snap)
		}
	}
}
