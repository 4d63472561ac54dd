package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"screener-web/internal/models"
	"screener-web/internal/poller"

	fylogger "github.com/FyersDev/trading-logger-go"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	statusFragment = "status.html"
	writeWait      = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// statusAction is a message sent by a mounted status view.
type statusAction struct {
	Action string `json:"action"`
}

type statusData struct {
	View poller.View
}

// StatusHandler serves the screener progress view. Every websocket
// connection is one mounted view with its own poller.
type StatusHandler struct {
	*BaseHandler
	tmpl *template.Template

	// last good status seen by the one-shot fragment routes
	lastMu sync.Mutex
	last   *models.JobStatus
}

func NewStatusHandler(base *BaseHandler, tmpl *template.Template) *StatusHandler {
	return &StatusHandler{BaseHandler: base, tmpl: tmpl}
}

// Fragment renders the status view from a single fetch. While the job is
// not terminal a Refresh header asks plain browsers to poll again.
// GET /ui/status
func (h *StatusHandler) Fragment(c *gin.Context) {
	p := h.services.NewStatusPoller(poller.WithLastKnown(h.lastKnown()))
	view := p.Refresh(c.Request.Context())
	h.remember(view)
	h.writeFragment(c, http.StatusOK, view)
}

// Stop is the form fallback of the stop button.
// POST /ui/status/stop
func (h *StatusHandler) Stop(c *gin.Context) {
	ctx := c.Request.Context()
	p := h.services.NewStatusPoller(poller.WithLastKnown(h.lastKnown()))
	p.Refresh(ctx)

	status := http.StatusOK
	if err := p.Cancel(ctx); err != nil && !stderrors.Is(err, poller.ErrNotRunning) {
		status = http.StatusBadGateway
	}
	view := p.Snapshot()
	h.remember(view)
	h.writeFragment(c, status, view)
}

func (h *StatusHandler) lastKnown() *models.JobStatus {
	h.lastMu.Lock()
	defer h.lastMu.Unlock()
	return h.last
}

func (h *StatusHandler) remember(v poller.View) {
	if v.FetchError != "" || v.Status == nil {
		return
	}
	h.lastMu.Lock()
	h.last = v.Status
	h.lastMu.Unlock()
}

// Stream mounts a poller for the lifetime of the websocket connection and
// pushes a rendered fragment on every change. A {"action":"stop"} message
// triggers the cancel action. The connection is closed once polling ends.
// GET /ui/status/ws
func (h *StatusHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		fylogger.ErrorLog(c.Request.Context(), "status websocket upgrade failed", err, nil)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var writeMu sync.Mutex
	write := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(messageType, data)
	}

	p := h.services.NewStatusPoller(poller.WithOnChange(func(v poller.View) {
		html, err := h.render(v)
		if err != nil {
			fylogger.ErrorLog(ctx, "status fragment render failed", err, nil)
			return
		}
		if err := write(websocket.TextMessage, html); err != nil {
			cancel()
		}
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg statusAction
			if err := json.Unmarshal(raw, &msg); err != nil || msg.Action != "stop" {
				continue
			}
			if err := p.Cancel(ctx); stderrors.Is(err, poller.ErrNotRunning) {
				fylogger.InfoLog(ctx, "stop ignored, no running job", nil)
			}
		}
	}()

	p.Run(ctx)

	if ctx.Err() == nil {
		_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "polling finished"))
	}
	// abort a stop request still in flight on the reader side
	cancel()
	conn.Close()
	<-done
}

func (h *StatusHandler) render(v poller.View) ([]byte, error) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, statusFragment, statusData{View: v}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *StatusHandler) writeFragment(c *gin.Context, status int, view poller.View) {
	if !view.Terminal() {
		seconds := int(math.Ceil(h.services.PollInterval().Seconds()))
		c.Header("Refresh", strconv.Itoa(seconds)+"; url=/ui/status")
	}

	html, err := h.render(view)
	if err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "failed to render status")
		return
	}
	c.Data(status, "text/html; charset=utf-8", html)
}
