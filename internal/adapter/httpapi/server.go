// Package httpapi exposes observations over HTTP: a server-sent-event stream
// of diffs and a write endpoint that goes through observed transactions.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"rowwatch/internal/platform/sqlite"
	"rowwatch/pkg/observe"
)

// ObserveFunc starts a new observation for one SSE client.
type ObserveFunc func(ctx context.Context) *observe.Observation

// Server serves the HTTP API.
type Server struct {
	log     *slog.Logger
	runner  *sqlite.TxRunner
	observe ObserveFunc
	engine  *gin.Engine
}

// New builds the server. observeFn is called once per /events client so each
// client gets its own observation and coalescing behavior.
func New(log *slog.Logger, runner *sqlite.TxRunner, observeFn ObserveFunc, env string) *Server {
	if env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{log: log, runner: runner, observe: observeFn, engine: gin.New()}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/events", s.handleEvents)
	s.engine.POST("/write", s.handleWrite)
	return s
}

// Handler returns the http.Handler for serving.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// eventPayload is the wire shape of one observation event.
type eventPayload struct {
	Seq     uint64          `json:"seq"`
	Initial bool            `json:"initial"`
	Rows    []map[string]any `json:"rows,omitempty"`
	Changes []changePayload `json:"changes"`
}

type changePayload struct {
	Kind      string         `json:"kind"`
	Index     int            `json:"index"`
	Row       map[string]any `json:"row"`
	OldValues map[string]any `json:"oldValues,omitempty"`
}

func toPayload(e observe.Event) eventPayload {
	p := eventPayload{Seq: e.Seq, Initial: e.Diff.Initial, Changes: []changePayload{}}
	if e.Diff.Initial {
		p.Rows = make([]map[string]any, len(e.Rows))
		for i, r := range e.Rows {
			p.Rows[i] = r.Map()
		}
		return p
	}
	for _, ch := range e.Diff.Changes {
		p.Changes = append(p.Changes, changePayload{
			Kind:      ch.Kind.String(),
			Index:     ch.Index,
			Row:       ch.Row.Map(),
			OldValues: ch.OldValues,
		})
	}
	return p
}

// handleEvents streams observation events as server-sent events. The
// observation is cancelled when the client disconnects.
func (s *Server) handleEvents(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	obs := s.observe(c.Request.Context())
	defer obs.Cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-obs.Events():
			if !ok {
				if err := obs.Err(); err != nil {
					s.log.Error("observation terminated", "error", err)
					c.SSEvent("error", gin.H{"error": err.Error()})
				}
				return false
			}
			c.SSEvent("diff", toPayload(e))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// writeRequest is the body of POST /write: one statement executed in a write
// transaction that notifies observers of the named tables.
type writeRequest struct {
	SQL    string   `json:"sql" binding:"required"`
	Args   []any    `json:"args"`
	Tables []string `json:"tables" binding:"required,min=1"`
}

func (s *Server) handleWrite(c *gin.Context) {
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	region := observe.NewRegion(req.Tables...)
	args := make([]any, len(req.Args))
	for i, a := range req.Args {
		// JSON numbers arrive as float64; store integral ones as INTEGER.
		if f, ok := a.(float64); ok && f == float64(int64(f)) {
			args[i] = int64(f)
			continue
		}
		args[i] = a
	}

	err := s.runner.WithinWriteTx(c.Request.Context(), region, func(ctx context.Context) error {
		_, err := s.runner.GetQuerier(ctx).ExecContext(ctx, req.SQL, args...)
		return err
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "committed"})
}
