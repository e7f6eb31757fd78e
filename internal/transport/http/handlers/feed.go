package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/IoanaFeraru/recipe-platform-sub000/internal/models"
	"github.com/IoanaFeraru/recipe-platform-sub000/internal/transport/http/apierrors"
	logctx "github.com/IoanaFeraru/recipe-platform-sub000/pkg/log"
)

const maxClientMessage = 512

var upgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  4096,
	HandshakeTimeout: 10 * time.Second,
}

// LiveComments — WebSocket-лента: сразу текущий список комментариев рецепта,
// затем новый список после каждого изменения. Клиент только читает.
//
// Подписка оформляется до апгрейда, чтобы неизвестный рецепт получил обычный
// HTTP-ответ с ошибкой.
func (h *Handlers) LiveComments(w http.ResponseWriter, r *http.Request) {
	recipeID, err := recipeParam(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	// Соединение живёт дольше дедлайна запроса, но не дольше процесса.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	stopBase := context.AfterFunc(h.feed.Base, cancel)
	defer stopBase()

	lg := logctx.From(ctx).With("recipe_id", recipeID.String())

	send := make(chan []models.Comment)
	closing := make(chan struct{})
	unsubscribe, err := h.svc.Subscribe(ctx, recipeID, func(list []models.Comment) {
		select {
		case send <- list:
		case <-closing:
		}
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	defer func() {
		close(closing)
		unsubscribe()
	}()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		lg.Warn("feed_upgrade_failed", "err", err.Error())
		return
	}
	defer conn.Close()

	lg.Info("feed_connected")
	defer lg.Info("feed_disconnected")

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, recipeID.String(), send)
}

// readPump держит read deadline по pong'ам и отменяет ctx при закрытии клиентом.
func (h *Handlers) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(h.feed.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.feed.PongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handlers) writePump(ctx context.Context, conn *websocket.Conn, recipeID string, send <-chan []models.Comment) {
	ticker := time.NewTicker(h.feed.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(h.feed.WriteTimeout))
			return

		case list := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(h.feed.WriteTimeout))
			msg := Snapshot{Type: "snapshot", RecipeID: recipeID, Comments: commentsFromModels(list)}
			if err := conn.WriteJSON(msg); err != nil {
				logctx.From(ctx).Debug("feed_write_failed", "err", err.Error())
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.feed.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
