package signal

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/beaconlabs/signaling/internal/app"
	"github.com/beaconlabs/signaling/internal/config"
	"github.com/beaconlabs/signaling/internal/core"
	"github.com/beaconlabs/signaling/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller owns the signaling websocket endpoint and feeds transport
// events into the router.
type Controller struct {
	Router  *app.Router
	Cfg     *config.Config
	limiter *RateLimiter
}

func NewController(router *app.Router, cfg *config.Config) *Controller {
	return &Controller{
		Router:  router,
		Cfg:     cfg,
		limiter: NewRateLimiter(cfg.MsgRateLimit, cfg.MsgRateInterval),
	}
}

// wsConn wraps one websocket with a buffered outbound channel. TrySend never
// blocks; writePump is the only goroutine writing to the socket.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	connID := domain.ConnID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Cfg.SendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Router.OnOpen(connID, conn, cancel)

	go writePump(ctx, ctl.Cfg, conn)
	go ctl.readPump(ctx, connID, conn)
}
