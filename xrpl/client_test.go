package xrpl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	escrow "github.com/sangah323/MPS-XRPL"
)

// fakeRippled answers submit, account_info and account_lines. Each reply is
// preceded by an unsolicited ledgerClosed message.
func fakeRippled(t *testing.T, dials *int32) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(dials, 1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req map[string]interface{}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			_ = conn.WriteJSON(map[string]interface{}{"type": "ledgerClosed", "ledger_index": 42})

			id := req["id"]
			switch req["command"] {
			case "submit":
				tx := req["tx_json"].(map[string]interface{})
				if req["secret"] != "sGoodSeed" {
					_ = conn.WriteJSON(map[string]interface{}{
						"id": id, "type": "response", "status": "error",
						"error": "badSecret", "error_message": "Secret does not match account.",
					})
					continue
				}
				engine := "tesSUCCESS"
				msg := "The transaction was applied. Only final in a validated ledger."
				if tx["TransactionType"] == "EscrowCancel" {
					engine = "tecNO_TARGET"
					msg = "Target account does not exist."
				}
				_ = conn.WriteJSON(map[string]interface{}{
					"id": id, "type": "response", "status": "success",
					"result": map[string]interface{}{
						"engine_result":         engine,
						"engine_result_message": msg,
						"tx_json": map[string]interface{}{
							"hash":     "E3FE6EA3D48F0C2B639448020EA4F03D4F4F8FFDB243A852A0F59177921B4879",
							"Sequence": 17,
						},
					},
				})
			case "account_info":
				_ = conn.WriteJSON(map[string]interface{}{
					"id": id, "type": "response", "status": "success",
					"result": map[string]interface{}{
						"account_data": map[string]interface{}{
							"Account": req["account"], "Balance": "99999990", "Sequence": 18,
						},
					},
				})
			case "account_lines":
				_ = conn.WriteJSON(map[string]interface{}{
					"id": id, "type": "response", "status": "success",
					"result": map[string]interface{}{
						"account": req["account"],
						"lines": []interface{}{
							map[string]interface{}{"account": "rMPSissuer", "balance": "50", "currency": "MPS", "limit": "1000000"},
						},
					},
				})
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientSubmit(t *testing.T) {
	var dials int32
	srv := fakeRippled(t, &dials)
	defer srv.Close()

	c := NewClient(wsURL(srv), WithTimeout(5*time.Second))
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect(ctx)

	tx := escrow.BuildEscrowFinish(escrow.FinishRequest{
		Submitter:   escrow.Wallet{Address: "rMPSissuer", Seed: "sGoodSeed"},
		Sequence:    17,
		Condition:   []byte("usage_count >= 10"),
		Fulfillment: []byte("usage_count: 15"),
	})
	res, err := c.Submit(ctx, tx, escrow.Wallet{Address: "rMPSissuer", Seed: "sGoodSeed"})
	require.NoError(t, err)
	assert.True(t, res.Accepted())
	assert.Equal(t, uint32(17), res.Sequence)
	assert.Len(t, res.Hash, 64)

	cancel := escrow.BuildEscrowCancel(escrow.CancelRequest{Submitter: escrow.Wallet{Address: "rMPSissuer"}, Sequence: 17})
	res, err = c.Submit(ctx, cancel, escrow.Wallet{Address: "rMPSissuer", Seed: "sGoodSeed"})
	require.NoError(t, err)
	assert.False(t, res.Accepted())
	assert.Equal(t, "tecNO_TARGET", res.EngineResult)
}

func TestClientRPCError(t *testing.T) {
	var dials int32
	srv := fakeRippled(t, &dials)
	defer srv.Close()

	c := NewClient(wsURL(srv))
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect(ctx)

	_, err := c.Submit(ctx, escrow.Transaction{"TransactionType": "EscrowCancel"}, escrow.Wallet{Address: "r", Seed: "sWrong"})
	require.Error(t, err)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "badSecret", rpcErr.Code)
}

func TestClientAccountInfo(t *testing.T) {
	var dials int32
	srv := fakeRippled(t, &dials)
	defer srv.Close()

	c := NewClient(wsURL(srv))
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect(ctx)

	state, err := c.AccountInfo(ctx, "rCompanyA")
	require.NoError(t, err)
	assert.Equal(t, "rCompanyA", state.Address)
	assert.Equal(t, uint32(18), state.Sequence)
	assert.Equal(t, "99.99999", state.XRPBalance)
	require.Len(t, state.Lines, 1)
	assert.Equal(t, escrow.TrustLineBalance{Currency: "MPS", Issuer: "rMPSissuer", Value: "50"}, state.Lines[0])
}

func TestClientConnectionScopes(t *testing.T) {
	var dials int32
	srv := fakeRippled(t, &dials)
	defer srv.Close()

	c := NewClient(wsURL(srv))
	ctx := context.Background()

	_, err := c.AccountInfo(ctx, "rCompanyA")
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Connect(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&dials), "nested scopes share one socket")

	require.NoError(t, c.Disconnect(ctx))
	_, err = c.AccountInfo(ctx, "rCompanyA")
	assert.NoError(t, err, "connection stays open until the last scope ends")

	require.NoError(t, c.Disconnect(ctx))
	_, err = c.AccountInfo(ctx, "rCompanyA")
	assert.ErrorIs(t, err, ErrNotConnected)
}

// silentFirst never answers on its first socket and delegates later sockets
// to next.
func silentFirst(t *testing.T, next http.Handler) *httptest.Server {
	t.Helper()
	var sockets int32
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&sockets, 1) > 1 {
			next.ServeHTTP(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req map[string]interface{}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
		}
	}))
}

func TestClientRecoversFromTimedOutSocket(t *testing.T) {
	var dials int32
	healthy := fakeRippled(t, &dials)
	defer healthy.Close()
	srv := silentFirst(t, healthy.Config.Handler)
	defer srv.Close()

	c := NewClient(wsURL(srv), WithTimeout(200*time.Millisecond))
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Connect(ctx))

	_, err := c.AccountLines(ctx, "rCompanyA")
	require.Error(t, err)

	lines, err := c.AccountLines(ctx, "rCompanyA")
	require.NoError(t, err, "an open scope redials after the socket failed")
	assert.Len(t, lines, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&dials))

	require.NoError(t, c.Disconnect(ctx))
	_, err = c.AccountLines(ctx, "rCompanyA")
	assert.NoError(t, err, "the other scope keeps the new socket")

	require.NoError(t, c.Disconnect(ctx))
	require.NoError(t, c.Disconnect(ctx), "extra disconnect is a no-op")
	_, err = c.AccountLines(ctx, "rCompanyA")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClientSubmitWithoutSeed(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultURL, c.URL())
	_, err := c.Submit(context.Background(), escrow.Transaction{}, escrow.Wallet{Address: "r"})
	assert.ErrorIs(t, err, ErrMissingSeed)
}

func TestDialFailure(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1")
	err := c.Connect(context.Background())
	assert.Error(t, err)
}
