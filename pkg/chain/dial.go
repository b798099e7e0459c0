package chain

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// defaultMockSeed is the starting balance every address gets in mock mode.
var defaultMockSeed = decimal.NewFromInt(100)

// Dial returns an RPC-backed client, or the mock client when no endpoint is
// configured or the node cannot be reached. The engine keeps functioning
// either way; mock results are tagged so callers can surface the difference.
func Dial(ctx context.Context, rpcURL string, opts Options, logger *zap.Logger) Client {
	if rpcURL == "" {
		logger.Warn("No chain RPC endpoint configured, using mock chain")
		return NewMockClient(defaultMockSeed, logger)
	}

	client, err := NewRPCClient(ctx, rpcURL, opts, logger)
	if err != nil {
		logger.Warn("Chain RPC unreachable, falling back to mock chain",
			zap.String("rpc_url", rpcURL),
			zap.Error(err))
		return NewMockClient(defaultMockSeed, logger)
	}
	return client
}
