package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/ytakahashi/firetodo/internal/todo"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type streamFrame struct {
	Items []todo.Todo `json:"items"`
	Stats todo.Stats  `json:"stats"`
}

// latest holds the most recent snapshot; older unsent snapshots are replaced.
type latest struct {
	mu    sync.Mutex
	items []todo.Todo
	ready chan struct{}
}

func (l *latest) put(items []todo.Todo) {
	l.mu.Lock()
	l.items = items
	l.mu.Unlock()
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *latest) take() []todo.Todo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items
}

// Stream sends the caller's todo list over a websocket after every change
// until the client disconnects.
func (h *TodoHandler) Stream(c echo.Context) error {
	uid := currentUID(c)
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return nil
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots := &latest{ready: make(chan struct{}, 1)}
	coll := todo.NewCollection(h.store)
	if err := coll.Open(ctx, uid, snapshots.put); err != nil {
		log.Error().Err(err).Str("uid", uid).Msg("Failed to open todo stream")
		ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"), time.Now().Add(writeTimeout))
		return nil
	}
	defer coll.Close()

	// reads only detect the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("uid", uid).Msg("Todo stream closed")
			return nil
		case <-snapshots.ready:
			items := snapshots.take()
			frame := streamFrame{Items: items, Stats: todo.ComputeStats(items, NowTimeFunc())}
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(frame); err != nil {
				log.Info().Err(err).Str("uid", uid).Msg("Todo stream write failed")
				return nil
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return nil
			}
		}
	}
}
