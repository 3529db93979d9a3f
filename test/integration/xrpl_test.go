package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	escrow "github.com/sangah323/MPS-XRPL"
	"github.com/sangah323/MPS-XRPL/test/mocks/ledger"
	"github.com/sangah323/MPS-XRPL/xrpl"
)

// TestXRPLClientWorkflow drives the websocket client against a rippled
// front-end for the simulator.
func TestXRPLClientWorkflow(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	clock := ledger.NewClock(ledger.BaseTime)
	sim := ledger.New(clock.Now)
	rippled := ledger.NewRippled(sim, ledger.Issuer)
	defer rippled.Close()

	client := xrpl.NewClient(rippled.URL(), xrpl.WithLogger(logger), xrpl.WithTimeout(5*time.Second))

	base := ledger.BaseTime.Unix()
	fixed := func() int64 { return base }
	controller := escrow.NewController(client, escrow.WithClock(fixed), escrow.WithLogger(logger)).
		OnBeforeSubmit(ledger.Stepper(clock, base, 2*time.Hour, 25*time.Hour, nil))
	s := escrow.NewSettlement(client, ledger.Issuer, escrow.NewDirectory(ledger.CompanyA, ledger.CompanyB),
		escrow.WithEscrower(controller),
		escrow.WithSettlementClock(fixed),
		escrow.WithSettlementLogger(logger),
	)

	res, err := s.Demo(ctx)
	require.NoError(t, err)
	require.NoError(t, res.Scenario1.Err)
	require.NoError(t, res.Scenario2.Err)
	assert.Equal(t, escrow.StatusFinished, res.Scenario1.Workflow.Status())
	assert.Equal(t, escrow.StatusCancelled, res.Scenario2.Workflow.Status())
	assert.NotEmpty(t, res.Scenario1.Workflow.Create.TxHash)

	balances, err := s.Balances(ctx)
	require.NoError(t, err)
	require.Contains(t, balances, "A")
	require.Len(t, balances["A"].Lines, 1)
	assert.True(t, decimal.RequireFromString("50").Equal(decimal.RequireFromString(balances["A"].Lines[0].Value)))
	assert.Equal(t, "1000", balances["mps"].XRPBalance)

	assert.Eventually(t, func() bool { return sim.OpenConnections() == 0 }, time.Second, 10*time.Millisecond,
		"every connection scope closes its socket")
}

func TestXRPLClientUnknownSecret(t *testing.T) {
	sim := ledger.New(nil)
	rippled := ledger.NewRippled(sim)
	defer rippled.Close()

	client := xrpl.NewClient(rippled.URL())
	s := escrow.NewSettlement(client, ledger.Issuer, escrow.NewDirectory(ledger.CompanyA))

	_, err := s.CreateSettlementEscrow(context.Background(), "A", 15, "50")
	require.Error(t, err)
	assert.True(t, escrow.IsTransport(err))
	assert.Contains(t, err.Error(), "badSecret")
}
