package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/daemon"
	"github.com/graphtab/gtab/internal/export"
	"github.com/graphtab/gtab/internal/importer"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer(Config{Addr: "127.0.0.1:0"})
	if err := server.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server
}

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}
	return msg
}

// nextMessage skips status messages until one of type want arrives.
func nextMessage(t *testing.T, ctx context.Context, conn *websocket.Conn, want MessageType) Message {
	t.Helper()
	for {
		msg := readMessage(t, ctx, conn)
		if msg.Type == want {
			return msg
		}
		if msg.Type != MessageTypeStatus {
			t.Fatalf("message type = %s, want %s", msg.Type, want)
		}
	}
}

func waitForClients(t *testing.T, server *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for server.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", server.ClientCount(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestServerStartStop tests the server lifecycle
func TestServerStartStop(t *testing.T) {
	server := NewServer(Config{Addr: "127.0.0.1:0"})
	if err := server.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if addr := server.Addr(); addr == "127.0.0.1:0" || addr == "" {
		t.Errorf("Addr() = %q, want the bound address", addr)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
}

// TestServerStop_NotStarted tests stopping a server that never started
func TestServerStop_NotStarted(t *testing.T) {
	if err := NewServer(Config{}).Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
}

// TestWebSocketConnection tests that new clients receive the status first
func TestWebSocketConnection(t *testing.T) {
	server := startServer(t)
	NewHandler(server, "tables", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, server)

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStatus {
		t.Fatalf("first message type = %s, want %s", msg.Type, MessageTypeStatus)
	}
	var status StatusData
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		t.Fatalf("failed to unmarshal status: %v", err)
	}
	if status.Dir != "tables" || status.Syncs != 0 {
		t.Errorf("status = %+v", status)
	}
	waitForClients(t, server, 1)
}

// TestMultipleClients tests that every client is tracked
func TestMultipleClients(t *testing.T) {
	server := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const numClients = 3
	for i := 0; i < numClients; i++ {
		conn := dial(t, ctx, server)
		readMessage(t, ctx, conn)
	}
	waitForClients(t, server, numClients)
}

// TestHandler_Sync tests the messages sent for an applied import
func TestHandler_Sync(t *testing.T) {
	server := startServer(t)
	h := NewHandler(server, "tables", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, server)
	readMessage(t, ctx, conn)
	waitForClients(t, server, 1)

	h.OnSync(&daemon.SyncResult{
		Import: &importer.Result{
			Created: 1,
			Updated: 2,
			Orphans: []importer.Orphan{{TempID: "%lost%", Type: "model.Function"}},
		},
		Export: &export.Result{Rows: 9, Tables: []string{"model.Function.csv"}},
	}, nil)

	msg := nextMessage(t, ctx, conn, MessageTypeSync)
	var data SyncData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal sync data: %v", err)
	}
	if data.Created != 1 || data.Updated != 2 || data.Rows != 9 {
		t.Errorf("sync data = %+v", data)
	}
	if len(data.Orphans) != 1 || data.Orphans[0] != "%lost%" {
		t.Errorf("Orphans = %v, want [%%lost%%]", data.Orphans)
	}

	if msg := readMessage(t, ctx, conn); msg.Type != MessageTypeStatus {
		t.Errorf("message type = %s, want %s", msg.Type, MessageTypeStatus)
	}
	status := h.Status()
	if status.Syncs != 1 || status.Created != 1 || status.Updated != 2 || status.LastSync.IsZero() {
		t.Errorf("Status() = %+v", status)
	}
}

// TestHandler_Failure tests that a rejected import names the cell at fault
func TestHandler_Failure(t *testing.T) {
	server := startServer(t)
	h := NewHandler(server, "tables", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, server)
	readMessage(t, ctx, conn)
	waitForClients(t, server, 1)

	cerr := convert.Errorf(convert.KindType, "not an int").At("model.Component.csv", 4)
	cerr.Column = "priority"
	h.OnSync(nil, cerr)

	msg := nextMessage(t, ctx, conn, MessageTypeSyncFailed)
	var data FailureData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal failure data: %v", err)
	}
	if data.Kind != "type" || data.File != "model.Component.csv" || data.Line != 4 || data.Column != "priority" {
		t.Errorf("failure data = %+v", data)
	}

	h.OnSync(nil, errors.New("disk full"))
	if status := h.Status(); status.Failures != 2 || status.LastError != "disk full" {
		t.Errorf("Status() = %+v", status)
	}
}

// TestHandler_SkippedSync tests that skipped syncs send nothing
func TestHandler_SkippedSync(t *testing.T) {
	server := NewServer(Config{})
	h := NewHandler(server, "tables", nil)
	h.OnSync(&daemon.SyncResult{Skipped: true}, nil)
	if status := h.Status(); status.Syncs != 0 || status.Failures != 0 {
		t.Errorf("Status() = %+v after a skipped sync", status)
	}
}

// TestHealthEndpoint tests the health check
func TestHealthEndpoint(t *testing.T) {
	server := NewServer(Config{})
	rec := httptest.NewRecorder()
	server.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Status != "ok" || body.Clients != 0 {
		t.Errorf("health = %+v", body)
	}

	rec = httptest.NewRecorder()
	server.handleRoot(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}
