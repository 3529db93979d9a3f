package ledger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	escrow "github.com/sangah323/MPS-XRPL"
)

// Rippled serves the subset of the rippled WebSocket API used by the xrpl
// client, backed by a Ledger. Each socket is one connection scope on the
// ledger.
type Rippled struct {
	server   *httptest.Server
	ledger   *Ledger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	wallets map[string]string // seed -> address
}

// NewRippled starts a server for l that signs for wallets.
func NewRippled(l *Ledger, wallets ...escrow.Wallet) *Rippled {
	r := &Rippled{ledger: l, wallets: make(map[string]string)}
	for _, w := range wallets {
		r.wallets[w.Seed] = w.Address
	}
	r.server = httptest.NewServer(http.HandlerFunc(r.serve))
	return r
}

// URL returns the ws:// endpoint.
func (r *Rippled) URL() string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http")
}

// Close stops the server.
func (r *Rippled) Close() {
	r.server.Close()
}

type rpcRequest struct {
	ID      uint64                 `json:"id"`
	Command string                 `json:"command"`
	Account string                 `json:"account"`
	Secret  string                 `json:"secret"`
	TxJSON  map[string]interface{} `json:"tx_json"`
}

func (r *Rippled) serve(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	if err := r.ledger.Connect(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer r.ledger.Disconnect(context.WithoutCancel(ctx))

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var msg rpcRequest
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		result, code, message := r.handle(ctx, msg)
		reply := map[string]interface{}{"id": msg.ID, "type": "response"}
		if code != "" {
			reply["status"] = "error"
			reply["error"] = code
			reply["error_message"] = message
		} else {
			reply["status"] = "success"
			reply["result"] = result
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}

func (r *Rippled) handle(ctx context.Context, msg rpcRequest) (interface{}, string, string) {
	switch msg.Command {
	case "submit":
		r.mu.Lock()
		address, ok := r.wallets[msg.Secret]
		r.mu.Unlock()
		if !ok {
			return nil, "badSecret", "Secret does not match account."
		}
		res, err := r.ledger.Submit(ctx, escrow.Transaction(msg.TxJSON), escrow.Wallet{Address: address, Seed: msg.Secret})
		if err != nil {
			return nil, "internal", err.Error()
		}
		return map[string]interface{}{
			"engine_result":         res.EngineResult,
			"engine_result_message": res.EngineResultMessage,
			"tx_json": map[string]interface{}{
				"hash":     res.Hash,
				"Sequence": res.Sequence,
			},
		}, "", ""

	case "account_info":
		state, err := r.ledger.AccountInfo(ctx, msg.Account)
		if err != nil {
			return nil, "internal", err.Error()
		}
		drops := state.XRPBalance
		if d, err := decimal.NewFromString(state.XRPBalance); err == nil {
			drops = d.Shift(6).String()
		}
		return map[string]interface{}{
			"account_data": map[string]interface{}{
				"Account":  state.Address,
				"Balance":  drops,
				"Sequence": state.Sequence,
			},
			"validated": true,
		}, "", ""

	case "account_lines":
		state, err := r.ledger.AccountInfo(ctx, msg.Account)
		if err != nil {
			return nil, "internal", err.Error()
		}
		lines := make([]map[string]interface{}, 0, len(state.Lines))
		for _, l := range state.Lines {
			lines = append(lines, map[string]interface{}{
				"account":  l.Issuer,
				"balance":  l.Value,
				"currency": l.Currency,
				"limit":    "1000000",
			})
		}
		return map[string]interface{}{"account": msg.Account, "lines": lines}, "", ""

	default:
		return nil, "unknownCmd", "Unknown method."
	}
}
