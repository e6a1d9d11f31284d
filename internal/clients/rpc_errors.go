package clients

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"walletd/internal/apperrors"

	"github.com/ethereum/go-ethereum/rpc"
)

// RateLimitBackoff suggested wait after a provider throttles us
const RateLimitBackoff = 30 * time.Second

// JSON-RPC code some providers use for "limit exceeded"
const codeLimitExceeded = -32005

// TranslateRPCError is the only place provider error text is interpreted.
// Errors that already carry a kind pass through unchanged.
func TranslateRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == 429 {
		return apperrors.RateLimited(RateLimitBackoff, err)
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeLimitExceeded {
		return apperrors.RateLimited(RateLimitBackoff, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "rate limit"):
		return apperrors.RateLimited(RateLimitBackoff, err)

	case strings.Contains(msg, "insufficient funds"):
		return &apperrors.Error{
			Kind:    apperrors.KindInsufficientFunds,
			Message: "node rejected transaction: insufficient funds for gas * price + value",
			Err:     err,
		}

	case strings.Contains(msg, "nonce too low"),
		strings.Contains(msg, "nonce too high"),
		strings.Contains(msg, "replacement transaction underpriced"),
		strings.Contains(msg, "already known"),
		strings.Contains(msg, "invalid sender"):
		return apperrors.Signing("node rejected transaction", err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Network("rpc call timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.Network("rpc endpoint unreachable", err)
	}
	return apperrors.Network("rpc call failed", err)
}
