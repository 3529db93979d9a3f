// Command escrowd runs the MPS usage settlement service against the XRP Ledger.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	escrow "github.com/sangah323/MPS-XRPL"
	"github.com/sangah323/MPS-XRPL/mcp"
	escrowgin "github.com/sangah323/MPS-XRPL/pkg/gin"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:          "escrowd",
		Short:        "MPS usage settlement on XRPL escrows",
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to an escrowd.yaml config file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("ledger-url", "", "XRPL websocket endpoint")
	flags.Int("port", 0, "HTTP listen port")

	// setup resolves config and wires the app for a subcommand.
	setup := func(cmd *cobra.Command) (*app, error) {
		v := newViper(cmd.Flags())
		cfg, err := loadConfig(v, configFile)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return nil, err
		}
		return newApp(cmd.Context(), cfg, logger, nil)
	}

	root.AddCommand(
		serveCmd(setup),
		mcpCmd(setup),
		demoCmd(setup),
		balancesCmd(setup),
	)
	return root
}

type setupFunc func(cmd *cobra.Command) (*app, error)

func serveCmd(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API (and MCP over SSE when mcp.enabled is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			router := escrowgin.NewRouter(a.settlement,
				escrowgin.WithLogger(a.logger.Named("http")),
				escrowgin.WithAPIPrefix(a.cfg.APIPrefix),
			)
			if a.cfg.MCPEnabled {
				sse := mcp.NewServer(a.settlement, mcp.WithLogger(a.logger.Named("mcp"))).SSEHandler()
				router.Any("/sse", gin.WrapH(sse))
				router.Any("/messages", gin.WrapH(sse))
			}
			return listen(cmd.Context(), a.logger, fmt.Sprintf(":%d", a.cfg.HTTPPort), router)
		},
	}
}

func mcpCmd(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the escrow tools over MCP SSE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sse := mcp.NewServer(a.settlement, mcp.WithLogger(a.logger.Named("mcp"))).SSEHandler()
			mux := http.NewServeMux()
			mux.Handle("/sse", sse)
			mux.Handle("/messages", sse)
			return listen(cmd.Context(), a.logger, fmt.Sprintf(":%d", a.cfg.MCPPort), mux)
		},
	}
}

func demoCmd(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the finish and cancel scenarios and print the outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.settlement.Demo(cmd.Context())
			if err != nil {
				return err
			}
			return printDemo(cmd.OutOrStdout(), res)
		},
	}
}

func balancesCmd(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "Print issuer and company balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			balances, err := a.settlement.Balances(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), balances)
		},
	}
}

func printDemo(w io.Writer, res *escrow.DemoResult) error {
	scenario := func(sc escrow.DemoScenario) map[string]interface{} {
		out := map[string]interface{}{"workflow": sc.Workflow, "status": sc.Workflow.Status()}
		if sc.Err != nil {
			out["error"] = sc.Err.Error()
		}
		return out
	}
	return writeJSON(w, map[string]interface{}{
		"scenario1": scenario(res.Scenario1),
		"scenario2": scenario(res.Scenario2),
	})
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// listen serves handler until ctx is cancelled or SIGINT/SIGTERM arrives.
func listen(ctx context.Context, logger *zap.Logger, addr string, handler http.Handler) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
