package gin

import (
	"time"

	"go.uber.org/zap"
)

// HandlerOptions configures the escrow HTTP handlers.
type HandlerOptions struct {
	Logger         *zap.Logger
	RequestTimeout time.Duration
	APIPrefix      string
}

// Options is the type for the options for the Handler.
type Options func(*HandlerOptions)

// WithLogger sets the logger used for request and failure logs.
func WithLogger(logger *zap.Logger) Options {
	return func(options *HandlerOptions) {
		options.Logger = logger
	}
}

// WithRequestTimeout bounds each ledger workflow started by a request.
func WithRequestTimeout(timeout time.Duration) Options {
	return func(options *HandlerOptions) {
		options.RequestTimeout = timeout
	}
}

// WithAPIPrefix sets the group the routes are mounted under in addition to
// the root. Defaults to "/api"; empty disables the second mount.
func WithAPIPrefix(prefix string) Options {
	return func(options *HandlerOptions) {
		options.APIPrefix = prefix
	}
}
