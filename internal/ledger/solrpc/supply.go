// =====================================
// File: internal/ledger/solrpc/supply.go
// =====================================
package solrpc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondswap/internal/ledger"
)

// Client is the part of the RPC client SupplySource needs. *rpc.Client
// satisfies it.
type Client interface {
	GetTokenSupply(ctx context.Context, mint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error)
}

// Recorder receives RPC latencies.
type Recorder interface {
	RecordRPC(method string, elapsed time.Duration, err error)
}

type Options struct {
	Retries    int
	RetryDelay time.Duration
	Commitment rpc.CommitmentType
	Recorder   Recorder
}

// SupplySource reads circulating mint supply from a cluster. Only the read
// is retried; a trade priced from it is never retried.
type SupplySource struct {
	client Client
	opts   Options
	logger *zap.Logger
}

var _ ledger.SupplyReader = (*SupplySource)(nil)

func New(client Client, opts Options, logger *zap.Logger) *SupplySource {
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 200 * time.Millisecond
	}
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	return &SupplySource{
		client: client,
		opts:   opts,
		logger: logger.Named("solrpc"),
	}
}

// Dial connects to endpoint.
func Dial(endpoint string, opts Options, logger *zap.Logger) *SupplySource {
	return New(rpc.New(endpoint), opts, logger)
}

func (s *SupplySource) Supply(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.RetryDelay
	policy.MaxInterval = s.opts.RetryDelay * 10

	notify := func(err error, d time.Duration) {
		s.logger.Warn("Retrying token supply read",
			zap.String("mint", mint.String()),
			zap.Duration("backoff", d),
			zap.Error(err))
	}

	operation := func() (uint64, error) {
		return s.fetch(ctx, mint)
	}

	supply, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(s.opts.Retries)),
		backoff.WithNotify(notify))
	if err != nil {
		return 0, fmt.Errorf("failed to read supply of %s: %w", mint, err)
	}
	return supply, nil
}

func (s *SupplySource) fetch(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	start := time.Now()
	res, err := s.client.GetTokenSupply(ctx, mint, s.opts.Commitment)
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordRPC("getTokenSupply", time.Since(start), err)
	}
	if err != nil {
		if strings.Contains(err.Error(), "could not find account") || strings.Contains(err.Error(), "not a Token mint") {
			return 0, backoff.Permanent(fmt.Errorf("%w: %s: %v", ledger.ErrMintNotFound, mint, err))
		}
		return 0, err
	}
	if res == nil || res.Value == nil {
		return 0, backoff.Permanent(fmt.Errorf("%w: %s: empty response", ledger.ErrMintNotFound, mint))
	}

	supply, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("malformed supply %q for %s: %w", res.Value.Amount, mint, err))
	}
	return supply, nil
}
