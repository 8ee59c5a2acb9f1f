package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/ledger"
	"github.com/lox/blackjack/internal/session"
)

type testServer struct {
	server *Server
	http   *httptest.Server
	ledger *ledger.Memory
}

// newTestServer deals each opened round from the next stacked deck
func newTestServer(t *testing.T, opening int64, decks ...[]string) *testServer {
	t.Helper()

	var mu sync.Mutex
	shoe := func(string) *game.Shoe {
		mu.Lock()
		defer mu.Unlock()
		if len(decks) == 0 {
			panic("no stacked deck left")
		}
		cards := decks[0]
		decks = decks[1:]
		return game.NewStackedShoe(game.MustParseCards(cards...)...)
	}

	var n atomic.Int64
	mem := ledger.NewMemory(opening)
	svc, err := session.NewService(session.DefaultConfig(), mem,
		session.WithLogger(log.New(io.Discard)),
		session.WithShoeSource(shoe),
		session.WithIDGenerator(func() string { return fmt.Sprintf("round-%d", n.Add(1)) }),
	)
	require.NoError(t, err)

	srv := NewServer("127.0.0.1:0", svc, log.New(io.Discard))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Stop()
		ts.Close()
	})
	return &testServer{server: srv, http: ts, ledger: mem}
}

func (ts *testServer) do(t *testing.T, method, path string, payload any) (int, []byte) {
	t.Helper()
	var r io.Reader
	switch b := payload.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.http.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (ts *testServer) snapshot(t *testing.T, method, path string, payload any, wantStatus int) game.Snapshot {
	t.Helper()
	status, data := ts.do(t, method, path, payload)
	require.Equal(t, wantStatus, status, string(data))
	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	return snap
}

func (ts *testServer) failure(t *testing.T, method, path string, payload any, wantStatus int) ErrorData {
	t.Helper()
	status, data := ts.do(t, method, path, payload)
	require.Equal(t, wantStatus, status, string(data))
	var e ErrorData
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

var pushDeck = []string{"Th", "Ts", "7c", "7d"}

func TestHealth(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 1000)

	status, data := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), `"status":"ok"`)
}

func TestOpenAndStandOverHTTP(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 1000, pushDeck)

	snap := ts.snapshot(t, http.MethodPost, "/api/game", body{"account": "alice", "bet": 100}, http.StatusCreated)
	assert.Equal(t, game.PhaseAwaitingPlayerAction, snap.Phase)
	assert.Equal(t, 0, snap.CurrentHandIndex)
	require.Len(t, snap.Dealer.Cards, 2)
	assert.Equal(t, "10", snap.Dealer.Cards[0].Rank)
	assert.True(t, snap.Dealer.Cards[1].Hidden)
	assert.Empty(t, snap.Dealer.Cards[1].Rank)
	assert.Equal(t, 10, snap.Dealer.Score)
	assert.Equal(t, 17, snap.Hands[0].Score)

	snap = ts.snapshot(t, http.MethodPost, "/api/game/"+snap.ID+"/stand", nil, http.StatusOK)
	assert.Equal(t, game.PhaseSettled, snap.Phase)
	assert.True(t, snap.Dealer.Revealed)
	assert.Equal(t, map[int]int64{0: 100}, snap.Winnings)
	require.NotNil(t, snap.Settlement)
	assert.Equal(t, game.OutcomePush, snap.Settlement.Hands[0].Outcome)

	got := ts.snapshot(t, http.MethodGet, "/api/game/"+snap.ID, nil, http.StatusOK)
	assert.Equal(t, snap.Winnings, got.Winnings)

	status, data := ts.do(t, http.MethodGet, "/api/balance/alice", nil)
	require.Equal(t, http.StatusOK, status)
	var bal BalanceResponseData
	require.NoError(t, json.Unmarshal(data, &bal))
	assert.Equal(t, BalanceResponseData{Account: "alice", Balance: 1000}, bal)
}

func TestErrorResponses(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 500, pushDeck)

	e := ts.failure(t, http.MethodPost, "/api/game", `{"account":`, http.StatusBadRequest)
	assert.Equal(t, codeInvalidRequest, e.Code)

	e = ts.failure(t, http.MethodPost, "/api/game", body{"account": "bob", "bet": 0}, http.StatusBadRequest)
	assert.Equal(t, game.CodeInvalidBet, e.Code)

	e = ts.failure(t, http.MethodPost, "/api/game", body{"account": "bob", "bet": 600}, http.StatusPaymentRequired)
	assert.Equal(t, game.CodeInsufficientBalance, e.Code)
	assert.Nil(t, e.Snapshot)

	e = ts.failure(t, http.MethodPost, "/api/game/nope/hit", nil, http.StatusNotFound)
	assert.Equal(t, game.CodeRoundNotFound, e.Code)

	snap := ts.snapshot(t, http.MethodPost, "/api/game", body{"account": "bob", "bet": 100}, http.StatusCreated)

	e = ts.failure(t, http.MethodPost, "/api/game", body{"account": "bob", "bet": 100}, http.StatusConflict)
	assert.Equal(t, game.CodeRoundInProgress, e.Code)

	e = ts.failure(t, http.MethodPost, "/api/game/"+snap.ID+"/insurance", body{"place_bet": true}, http.StatusConflict)
	assert.Equal(t, game.CodeIllegalAction, e.Code)
	require.NotNil(t, e.Snapshot, "errors carry the latest snapshot")
	assert.Equal(t, game.PhaseAwaitingPlayerAction, e.Snapshot.Phase)

	ts.snapshot(t, http.MethodPost, "/api/game/"+snap.ID+"/stand", nil, http.StatusOK)

	e = ts.failure(t, http.MethodPost, "/api/game/"+snap.ID+"/hit", nil, http.StatusConflict)
	assert.Equal(t, game.CodeRoundAlreadySettled, e.Code)
	require.NotNil(t, e.Snapshot)
	assert.Equal(t, map[int]int64{0: 100}, e.Snapshot.Winnings)
}

func TestInsuranceOverHTTP(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 1000, []string{"Th", "As", "9c", "7d"})

	snap := ts.snapshot(t, http.MethodPost, "/api/game", body{"account": "carol", "bet": 100}, http.StatusCreated)
	assert.Equal(t, game.PhaseAwaitingInsurance, snap.Phase)
	assert.True(t, snap.CanInsure)

	e := ts.failure(t, http.MethodPost, "/api/game/"+snap.ID+"/insurance", body{}, http.StatusBadRequest)
	assert.Equal(t, codeInvalidRequest, e.Code)

	snap = ts.snapshot(t, http.MethodPost, "/api/game/"+snap.ID+"/insurance", body{"place_bet": false}, http.StatusOK)
	assert.Equal(t, game.PhaseAwaitingPlayerAction, snap.Phase)
	assert.Equal(t, game.InsuranceDeclined, snap.Insurance)

	snap = ts.snapshot(t, http.MethodPost, "/api/game/"+snap.ID+"/stand", nil, http.StatusOK)
	assert.Equal(t, game.PhaseSettled, snap.Phase)
	assert.Equal(t, int64(200), snap.Winnings[0])
}

func TestEndRemovesRound(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 1000, pushDeck)

	snap := ts.snapshot(t, http.MethodPost, "/api/game", body{"account": "dave", "bet": 100}, http.StatusCreated)
	snap = ts.snapshot(t, http.MethodDelete, "/api/game/"+snap.ID, nil, http.StatusOK)
	assert.Equal(t, game.PhaseSettled, snap.Phase, "ending an open round stands it")

	ts.failure(t, http.MethodGet, "/api/game/"+snap.ID, nil, http.StatusNotFound)
	bal, err := ts.ledger.Balance(context.Background(), "dave")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want int
	}{
		{errInvalidRequest, http.StatusBadRequest},
		{game.ErrInvalidBet, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", game.ErrInsufficientBalance), http.StatusPaymentRequired},
		{game.ErrRoundNotFound, http.StatusNotFound},
		{game.ErrIllegalAction, http.StatusConflict},
		{game.ErrRoundAlreadySettled, http.StatusConflict},
		{game.ErrRoundInProgress, http.StatusConflict},
		{game.ErrShoeExhausted, http.StatusInternalServerError},
		{fmt.Errorf("%w: 250 owed", session.ErrPayoutPending), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

// body is a JSON request body
type body map[string]any

func dial(t *testing.T, ts *testServer) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, requestID string, msgType MessageType, data any) {
	t.Helper()
	msg, err := NewMessage(msgType, data)
	require.NoError(t, err)
	msg.RequestID = requestID
	require.NoError(t, conn.WriteJSON(msg))
}

func read(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return &msg
}

func decode[T any](t *testing.T, msg *Message) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Data, &v))
	return v
}

func TestWebSocketPlay(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 1000, pushDeck)
	conn := dial(t, ts)

	send(t, conn, "1", MessageTypeOpen, OpenData{Account: "erin", Bet: 100})
	msg := read(t, conn)
	require.Equal(t, MessageTypeSnapshot, msg.Type)
	assert.Equal(t, "1", msg.RequestID)
	snap := decode[game.Snapshot](t, msg)
	assert.Equal(t, game.PhaseAwaitingPlayerAction, snap.Phase)

	send(t, conn, "2", MessageTypeAction, ActionData{RoundID: snap.ID, Action: "split"})
	msg = read(t, conn)
	require.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, "2", msg.RequestID)
	e := decode[ErrorData](t, msg)
	assert.Equal(t, game.CodeIllegalAction, e.Code)
	require.NotNil(t, e.Snapshot)
	assert.Equal(t, snap.ID, e.Snapshot.ID)

	send(t, conn, "3", MessageTypeAction, ActionData{RoundID: snap.ID, Action: "stand"})
	msg = read(t, conn)
	require.Equal(t, MessageTypeSettled, msg.Type, "own events are not echoed before the reply")
	assert.Equal(t, "3", msg.RequestID)
	snap = decode[game.Snapshot](t, msg)
	assert.Equal(t, int64(100), snap.Winnings[0])

	send(t, conn, "4", MessageTypeBalance, BalanceData{Account: "erin"})
	msg = read(t, conn)
	require.Equal(t, MessageTypeBalanceResponse, msg.Type)
	assert.Equal(t, int64(1000), decode[BalanceResponseData](t, msg).Balance)

	send(t, conn, "5", MessageType("bogus"), nil)
	msg = read(t, conn)
	require.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, codeUnknownMessage, decode[ErrorData](t, msg).Code)
}

func TestWebSocketReceivesPushedEvents(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 1000, pushDeck)
	conn := dial(t, ts)

	send(t, conn, "open", MessageTypeOpen, OpenData{Account: "frank", Bet: 100})
	snap := decode[game.Snapshot](t, read(t, conn))

	// Standing over HTTP pushes the change to the watching socket.
	ts.snapshot(t, http.MethodPost, "/api/game/"+snap.ID+"/stand", nil, http.StatusOK)

	msg := read(t, conn)
	require.Equal(t, MessageTypeSnapshot, msg.Type)
	assert.Empty(t, msg.RequestID)
	msg = read(t, conn)
	require.Equal(t, MessageTypeSettled, msg.Type)
	assert.Equal(t, game.PhaseSettled, decode[game.Snapshot](t, msg).Phase)
}

func TestStopClosesConnections(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, 1000)
	conn := dial(t, ts)

	require.Eventually(t, func() bool { return ts.server.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	ts.server.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, ts.server.ConnectionCount())
}
