package pool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondswap/internal/curve"
)

type pairKey [2]solana.PublicKey

// Registry keeps one pool per mint pair. The pair order is fixed by the
// first Create; the reversed pair resolves to the same pool.
type Registry struct {
	mu        sync.RWMutex
	programID solana.PublicKey
	byPair    map[pairKey]*LiquidityPool
	byAddress map[solana.PublicKey]*LiquidityPool
	logger    *zap.Logger
}

func NewRegistry(programID solana.PublicKey, logger *zap.Logger) *Registry {
	return &Registry{
		programID: programID,
		byPair:    make(map[pairKey]*LiquidityPool),
		byAddress: make(map[solana.PublicKey]*LiquidityPool),
		logger:    logger.Named("pool_registry"),
	}
}

func (r *Registry) ProgramID() solana.PublicKey {
	return r.programID
}

// Create derives and records the pool for (mintA, mintB).
func (r *Registry) Create(mintA, mintB solana.PublicKey, params curve.Params) (*LiquidityPool, error) {
	p, err := New(r.programID, mintA, mintB, params)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.lookup(mintA, mintB); ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolExists, existing.Address)
	}
	r.byPair[pairKey{mintA, mintB}] = p
	r.byAddress[p.Address] = p

	r.logger.Info("Liquidity pool registered",
		zap.String("pool", p.Address.String()),
		zap.String("mint_a", mintA.String()),
		zap.String("mint_b", mintB.String()),
		zap.String("authority", p.Authority.String()),
		zap.String("reserve", p.Reserve.String()))

	return p, nil
}

func (r *Registry) lookup(x, y solana.PublicKey) (*LiquidityPool, bool) {
	if p, ok := r.byPair[pairKey{x, y}]; ok {
		return p, true
	}
	p, ok := r.byPair[pairKey{y, x}]
	return p, ok
}

// Get finds the pool for a pair in either order.
func (r *Registry) Get(x, y solana.PublicKey) (*LiquidityPool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.lookup(x, y); ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrPoolNotFound, x, y)
}

func (r *Registry) ByAddress(address solana.PublicKey) (*LiquidityPool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.byAddress[address]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, address)
}

// List returns every pool ordered by address.
func (r *Registry) List() []*LiquidityPool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pools := make([]*LiquidityPool, 0, len(r.byAddress))
	for _, p := range r.byAddress {
		pools = append(pools, p)
	}
	sort.Slice(pools, func(i, j int) bool {
		return pools[i].Address.String() < pools[j].Address.String()
	})
	return pools
}
