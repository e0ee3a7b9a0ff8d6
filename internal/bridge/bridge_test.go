package bridge_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynotes/docsync"
	"github.com/mynotes/docsync/internal/bridge"
	"github.com/mynotes/docsync/internal/fakeapi"
	"github.com/mynotes/docsync/internal/metrics"
	"github.com/mynotes/docsync/pkg/gateway"
	"github.com/mynotes/docsync/pkg/localstore"
	"github.com/mynotes/docsync/pkg/models"
)

type frame struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func newWorkspace(t *testing.T) (*docsync.Workspace, *fakeapi.Server) {
	t.Helper()
	fake := fakeapi.NewServer()
	api := httptest.NewServer(fake)
	t.Cleanup(api.Close)
	fake.AddUser("Ada", "ada@example.com", "secret")

	ws, err := docsync.New(context.Background(), gateway.NewClient(api.URL+"/api"),
		docsync.WithStore(localstore.NewMemory()))
	require.NoError(t, err)
	t.Cleanup(ws.Close)
	return ws, fake
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	mt, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)
	var f frame
	require.NoError(t, json.Unmarshal(payload, &f))
	return f
}

// readUntil skips frames until one of kind satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, kind string, match func(json.RawMessage) bool) frame {
	t.Helper()
	for {
		f := readFrame(t, conn)
		if f.Kind == kind && match(f.Data) {
			return f
		}
	}
}

func TestStreamSendsCurrentStateFirst(t *testing.T) {
	ws, _ := newWorkspace(t)
	srv := httptest.NewServer(bridge.New(ws).Handler())
	t.Cleanup(srv.Close)

	conn := dial(t, srv)

	kinds := make([]string, 0, 6)
	for range 6 {
		kinds = append(kinds, readFrame(t, conn).Kind)
	}
	assert.ElementsMatch(t, []string{
		bridge.KindSession, bridge.KindPreferences, bridge.KindSidebar,
		bridge.KindSpaces, bridge.KindFavorites, bridge.KindDocument,
	}, kinds)
}

func TestStreamForwardsChanges(t *testing.T) {
	ctx := context.Background()
	ws, fake := newWorkspace(t)
	sp := fake.AddSpace(models.Space{Name: "Team"})
	srv := httptest.NewServer(bridge.New(ws).Handler())
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	for range 6 {
		readFrame(t, conn)
	}

	ws.Sidebar.SetHovering(true)
	f := readUntil(t, conn, bridge.KindSidebar, func(raw json.RawMessage) bool {
		var st struct{ Hovering bool }
		return json.Unmarshal(raw, &st) == nil && st.Hovering
	})
	assert.JSONEq(t, `{"Collapsed":false,"Width":256,"Hovering":true}`, string(f.Data))

	require.NoError(t, ws.Login(ctx, "ada@example.com", "secret"))
	readUntil(t, conn, bridge.KindSession, func(raw json.RawMessage) bool {
		var snap struct{ Authenticated bool }
		return json.Unmarshal(raw, &snap) == nil && snap.Authenticated
	})
	f = readUntil(t, conn, bridge.KindSpaces, func(raw json.RawMessage) bool {
		var snap struct{ Spaces []models.Space }
		return json.Unmarshal(raw, &snap) == nil && len(snap.Spaces) == 1
	})
	var snap struct{ Spaces []models.Space }
	require.NoError(t, json.Unmarshal(f.Data, &snap))
	assert.Equal(t, sp.ID, snap.Spaces[0].ID)
}

func TestServeStopsWithContext(t *testing.T) {
	ws, _ := newWorkspace(t)
	m := metrics.New()
	s := bridge.New(ws, bridge.WithHandler("/metrics", m.Handler()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestExtraHandlersAreMounted(t *testing.T) {
	ws, _ := newWorkspace(t)
	m := metrics.New()
	srv := httptest.NewServer(bridge.New(ws, bridge.WithHandler("/metrics", m.Handler())).Handler())
	t.Cleanup(srv.Close)

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
