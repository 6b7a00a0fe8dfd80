package chain

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

// Dial opens a JSON-RPC client for endpoint with per-request timeout.
func Dial(ctx context.Context, endpoint string, timeout time.Duration) (*rpc.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("chain rpc endpoint required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client, err := rpc.DialOptions(ctx, trimmed, rpc.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	return client, nil
}
