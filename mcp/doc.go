// Package mcp exposes the escrow settlement workflow as MCP (Model Context
// Protocol) tools.
//
// # Server Usage
//
// Register the escrow tools on an SDK server and serve them over SSE:
//
//	srv := mcp.NewServer(settlement, mcp.WithLogger(logger))
//	http.Handle("/sse", srv.SSEHandler())
//	http.Handle("/messages", srv.SSEHandler())
//
// Tools:
//
//	escrow_create    lock a settlement amount for a company
//	escrow_finish    release a lock once usage meets the threshold
//	escrow_cancel    return an expired lock to the issuer
//	escrow_settle    run create then finish-or-cancel in one call
//	escrow_demo      run both demo scenarios
//	escrow_balances  report issuer and company balances
//
// Every tool replies with one JSON text item. Failures set IsError and carry
// {"success": false, "error": "..."}.
//
// # Client Usage
//
//	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "agent", Version: "1.0.0"}, nil)
//	session, _ := client.Connect(ctx, transport, nil)
//	escrowClient := mcp.NewClient(session)
//	created, err := escrowClient.Create(ctx, "A", 15, "50")
//
// # Hooks
//
// OnBeforeExecution can veto a tool call before any ledger traffic, and
// OnAfterExecution observes every result.
package mcp
