package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/Seednode/pairs/memory"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGameID = "ABCDefgh"

func newTestConfig() *Config {
	return &Config{
		bind:           "127.0.0.1",
		pairs:          2,
		port:           8080,
		sessionTimeout: time.Hour,
		theme:          string(memory.DefaultTheme),
	}
}

func newTestServer(t *testing.T, cfg *Config) (*httptest.Server, *GameManager) {
	t.Helper()

	mux, gm := newRouter(cfg, make(chan error, 64))
	srv := httptest.NewServer(mux)

	t.Cleanup(srv.Close)
	t.Cleanup(gm.Close)

	return srv, gm
}

func dial(t *testing.T, srv *httptest.Server, gameID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/memory/" + gameID + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readBoard(t *testing.T, conn *websocket.Conn) BoardMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg BoardMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "board", msg.Type)

	return msg
}

func choose(t *testing.T, conn *websocket.Conn, id int) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "choose", ID: &id}))
}

func TestNewCardViewsHidesFaceDownContent(t *testing.T) {
	t.Parallel()

	views := newCardViews([]memory.Card[string]{
		{ID: 0, Content: "A"},
		{ID: 1, Content: "A", IsFaceUp: true},
		{ID: 2, Content: "B", IsFaceUp: true, IsMatched: true},
	})

	require.Len(t, views, 3)
	assert.Equal(t, CardView{ID: 0}, views[0])
	assert.Equal(t, CardView{ID: 1, Content: "A", FaceUp: true}, views[1])
	assert.Equal(t, CardView{ID: 2, Content: "B", FaceUp: true, Matched: true}, views[2])
}

func TestGameIDs(t *testing.T) {
	t.Parallel()

	for range 100 {
		id := randomGameID(gameIDLength)
		assert.True(t, validGameID(id), id)
	}

	assert.True(t, validGameID(testGameID))
	assert.False(t, validGameID(""))
	assert.False(t, validGameID("short"))
	assert.False(t, validGameID("ABCD-fgh"))
	assert.False(t, validGameID("ABCDefghi"))
}

func TestBoardSession(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newTestConfig())

	first := dial(t, srv, testGameID)

	board := readBoard(t, first)
	assert.Equal(t, testGameID, board.GameID)
	require.Len(t, board.Cards, 4)
	for _, c := range board.Cards {
		assert.False(t, c.FaceUp)
		assert.Empty(t, c.Content)
	}

	choose(t, first, 0)
	board = readBoard(t, first)
	assert.True(t, board.Cards[0].FaceUp)
	assert.Equal(t, "🚕", board.Cards[0].Content)
	assert.Empty(t, board.Cards[1].Content)

	second := dial(t, srv, testGameID)
	board = readBoard(t, second)
	assert.True(t, board.Cards[0].FaceUp, "late joiner sees the current board")

	choose(t, second, 1)
	for _, conn := range []*websocket.Conn{first, second} {
		board = readBoard(t, conn)
		assert.True(t, board.Cards[0].Matched)
		assert.True(t, board.Cards[1].Matched)
		assert.False(t, board.Done)
	}

	choose(t, first, 1)
	board = readBoard(t, first)
	assert.True(t, board.Cards[1].Matched, "stale pick leaves the board alone")
	assert.False(t, board.Cards[2].FaceUp)
	readBoard(t, second)

	choose(t, first, 2)
	readBoard(t, first)
	choose(t, first, 3)
	board = readBoard(t, first)
	assert.True(t, board.Done)
	for _, c := range board.Cards {
		assert.True(t, c.Matched)
		assert.NotEmpty(t, c.Content)
	}
}

func TestBoardSessionsAreIsolated(t *testing.T) {
	t.Parallel()

	srv, gm := newTestServer(t, newTestConfig())

	a := dial(t, srv, "AAAAAAAA")
	readBoard(t, a)
	b := dial(t, srv, "BBBBBBBB")
	readBoard(t, b)

	choose(t, a, 0)
	assert.True(t, readBoard(t, a).Cards[0].FaceUp)

	c := dial(t, srv, "BBBBBBBB")
	assert.False(t, readBoard(t, c).Cards[0].FaceUp)

	assert.Equal(t, 2, gm.count())
}

func TestBoardIgnoresMalformedMessages(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newTestConfig())

	conn := dial(t, srv, testGameID)
	readBoard(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "choose"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "flip", "id": 0}))

	choose(t, conn, 2)
	board := readBoard(t, conn)
	assert.False(t, board.Cards[0].FaceUp)
	assert.True(t, board.Cards[2].FaceUp)
}

func TestWebSocketRejectsBadGameID(t *testing.T) {
	t.Parallel()

	srv, gm := newTestServer(t, newTestConfig())

	resp, err := http.Get(srv.URL + "/memory/bad/ws")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, gm.count())
}

func TestRedirectNewGame(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newTestConfig())

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(srv.URL + "/memory")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Regexp(t, regexp.MustCompile(`^/memory/[A-Za-z0-9]{8}$`), resp.Header.Get("Location"))
}

func TestBoardPage(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newTestConfig())

	resp, err := http.Get(srv.URL + "/memory/" + testGameID)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "app.js")

	resp, err = http.Get(srv.URL + "/memory/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQRCode(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newTestConfig())

	resp, err := http.Get(srv.URL + "/memory/" + testGameID + "/qr")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))
}

func TestReapIdleGames(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig()
	gm := newGameManager(0)
	t.Cleanup(gm.Close)

	hub := gm.getHub(cfg, testGameID)
	assert.Same(t, hub, gm.getHub(cfg, testGameID))

	gm.reap(time.Now().Add(-time.Minute))
	assert.Equal(t, 1, gm.count())

	gm.reap(time.Now().Add(time.Minute))
	assert.Zero(t, gm.count())

	select {
	case <-hub.quit:
	case <-time.After(time.Second):
		t.Fatal("reaped hub was not stopped")
	}

	assert.NotSame(t, hub, gm.getHub(cfg, testGameID))
}

func TestCloseDisconnectsClients(t *testing.T) {
	t.Parallel()

	srv, gm := newTestServer(t, newTestConfig())

	conn := dial(t, srv, testGameID)
	readBoard(t, conn)

	gm.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, gm.count())
}

func TestReaperSurvivesTinyTimeout(t *testing.T) {
	t.Parallel()

	gm := newGameManager(time.Nanosecond)
	t.Cleanup(gm.Close)

	gm.getHub(newTestConfig(), testGameID)

	assert.Eventually(t, func() bool {
		return gm.count() == 0
	}, 5*time.Second, 50*time.Millisecond)
}
