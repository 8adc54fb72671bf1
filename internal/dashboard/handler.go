package dashboard

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/daemon"
)

// StatusData holds the running totals of a watch session.
type StatusData struct {
	Dir       string    `json:"dir"`
	Syncs     int       `json:"syncs"`
	Failures  int       `json:"failures"`
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Deleted   int       `json:"deleted"`
	LastSync  time.Time `json:"last_sync,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// SyncData describes one applied import.
type SyncData struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Deleted int      `json:"deleted"`
	Rows    int      `json:"rows"`
	Tables  []string `json:"tables,omitempty"`
	// Orphans lists the temporary ids of created nodes that were dropped.
	Orphans []string `json:"orphans,omitempty"`
}

// FailureData describes a rejected import. Location fields are set when
// the failure points at a table cell.
type FailureData struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column string `json:"column,omitempty"`
}

// Handler turns daemon sync results into dashboard messages.
type Handler struct {
	server *Server
	logger *slog.Logger

	mu     sync.Mutex
	status StatusData
}

// NewHandler creates a handler for the watch session of dir and publishes
// the initial status.
func NewHandler(server *Server, dir string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{
		server: server,
		logger: logger.With("component", "dashboard"),
		status: StatusData{Dir: dir},
	}
	h.publishStatus(h.status)
	return h
}

// OnSync matches daemon.Config.OnSync.
func (h *Handler) OnSync(res *daemon.SyncResult, err error) {
	switch {
	case err != nil:
		h.onFailure(err)
	case res == nil || res.Skipped || res.Import == nil || res.Import.Canceled:
	default:
		h.onSync(res)
	}
}

func (h *Handler) onSync(res *daemon.SyncResult) {
	data := SyncData{
		Created: res.Import.Created,
		Updated: res.Import.Updated,
		Deleted: res.Import.Deleted,
	}
	for _, o := range res.Import.Orphans {
		data.Orphans = append(data.Orphans, o.TempID)
	}
	if res.Export != nil {
		data.Rows = res.Export.Rows
		data.Tables = res.Export.Tables
	}
	h.broadcast(MessageTypeSync, data)

	h.mu.Lock()
	h.status.Syncs++
	h.status.Created += data.Created
	h.status.Updated += data.Updated
	h.status.Deleted += data.Deleted
	h.status.LastSync = time.Now()
	h.status.LastError = ""
	status := h.status
	h.mu.Unlock()
	h.publishStatus(status)
}

func (h *Handler) onFailure(err error) {
	data := FailureData{Error: err.Error(), Kind: convert.KindOf(err).String()}
	var cerr *convert.Error
	if errors.As(err, &cerr) {
		data.File, data.Line, data.Column = cerr.File, cerr.Line, cerr.Column
	}
	h.broadcast(MessageTypeSyncFailed, data)

	h.mu.Lock()
	h.status.Failures++
	h.status.LastError = data.Error
	status := h.status
	h.mu.Unlock()
	h.publishStatus(status)
}

// Status returns a copy of the running totals.
func (h *Handler) Status() StatusData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *Handler) publishStatus(status StatusData) {
	data, err := json.Marshal(status)
	if err != nil {
		h.logger.Warn("failed to marshal status", "error", err)
		return
	}
	h.server.SetStatus(Message{Data: data})
}

func (h *Handler) broadcast(typ MessageType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("failed to marshal message", "type", typ, "error", err)
		return
	}
	h.server.Broadcast(Message{Type: typ, Data: data})
}
