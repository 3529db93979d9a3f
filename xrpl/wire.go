package xrpl

import (
	"encoding/json"
	"fmt"
)

// response is the envelope of every reply on the WebSocket API.
type response struct {
	ID           uint64          `json:"id"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	ErrorCode    int             `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

type submitResult struct {
	EngineResult        string `json:"engine_result"`
	EngineResultCode    int    `json:"engine_result_code"`
	EngineResultMessage string `json:"engine_result_message"`
	TxBlob              string `json:"tx_blob"`
	TxJSON              struct {
		Hash     string `json:"hash"`
		Sequence uint32 `json:"Sequence"`
	} `json:"tx_json"`
}

type accountInfoResult struct {
	AccountData struct {
		Account  string `json:"Account"`
		Balance  string `json:"Balance"`
		Sequence uint32 `json:"Sequence"`
	} `json:"account_data"`
	LedgerIndex uint32 `json:"ledger_current_index"`
	Validated   bool   `json:"validated"`
}

type accountLinesResult struct {
	Account string `json:"account"`
	Lines   []struct {
		Account  string `json:"account"`
		Balance  string `json:"balance"`
		Currency string `json:"currency"`
		Limit    string `json:"limit"`
	} `json:"lines"`
}

// RPCError is an error reply from the server, e.g. "actNotFound".
type RPCError struct {
	Command string
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("xrpl %s: %s: %s", e.Command, e.Code, e.Message)
	}
	return fmt.Sprintf("xrpl %s: %s", e.Command, e.Code)
}
