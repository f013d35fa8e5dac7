package signal

import (
	"context"
	"errors"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/beaconlabs/signaling/internal/config"
	"github.com/beaconlabs/signaling/internal/core"
)

// EchoHub is the plain broadcast channel: no rooms, every frame is echoed to
// all currently-open echo connections.
type EchoHub struct {
	Cfg *config.Config

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

func NewEchoHub(cfg *config.Config) *EchoHub {
	return &EchoHub{Cfg: cfg, conns: make(map[*wsConn]struct{})}
}

func (h *EchoHub) HandleEcho(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.echo").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(h.Cfg.ReadLimit)

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, h.Cfg.SendBuffer),
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	log.Info().Str("module", "signal.echo").Msg("echo connection opened")

	ctx, cancel := context.WithCancel(ctx)
	go writePump(ctx, h.Cfg, conn)
	go h.readPump(ctx, cancel, conn)
}

func (h *EchoHub) readPump(ctx context.Context, cancel context.CancelFunc, c *wsConn) {
	defer func() {
		h.mu.Lock()
		delete(h.conns, c)
		h.mu.Unlock()
		cancel()
		c.Close()
		log.Info().Str("module", "signal.echo").Msg("echo connection closed")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			h.broadcast(append([]byte("Echo: "), data...))
		}
	}
}

// broadcast echoes to every open echo connection, sender included. Closed
// connections are pruned on delivery failure.
func (h *EchoHub) broadcast(data core.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.TrySend(data); err != nil {
			if errors.Is(err, core.ErrClosed) {
				delete(h.conns, conn)
			}
			log.Debug().Err(err).Str("module", "signal.echo").Msg("echo delivery skipped")
		}
	}
}

func (h *EchoHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
