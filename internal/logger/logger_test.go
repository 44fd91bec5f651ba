package logger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/bondswap/internal/curve"
	"github.com/rovshanmuradov/bondswap/internal/pool"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	ring := NewRing(16)
	cfg := DefaultConfig()
	cfg.LogFile = filepath.Join(dir, "bondswap.log")
	cfg.Console = ring

	log, err := New(cfg)
	require.NoError(t, err)

	p, err := pool.New(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), curve.DefaultParams())
	require.NoError(t, err)

	log.WithPool(p).Info("Pool ready")
	log.WithComponent("sim").Debug("hidden below info")
	require.NoError(t, log.Sync())

	lines := ring.Lines(0)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Pool ready")
	assert.Contains(t, lines[0], p.Address.String())

	f, err := os.Open(cfg.LogFile)
	require.NoError(t, err)
	defer f.Close()

	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan())
	var entry map[string]any
	require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
	assert.Equal(t, "Pool ready", entry["msg"])
	assert.Equal(t, p.MintA.String(), entry["mint_a"])
}

func TestOperationCorrelation(t *testing.T) {
	ring := NewRing(8)
	log, err := New(&Config{Console: ring, Development: true})
	require.NoError(t, err)

	end := log.TrackPerformance("quote")
	end()

	lines := ring.Lines(0)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Starting operation")
	assert.Contains(t, lines[1], "Operation completed")
	assert.Contains(t, lines[1], "correlation_id")
}

func TestRingKeepsMostRecent(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		_, err := fmt.Fprintf(r, "line %d\n", i)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, r.Lines(0))
	assert.Equal(t, []string{"line 3", "line 4"}, r.Lines(2))
	assert.Equal(t, uint64(5), r.Total())

	_, err := r.Write([]byte("a\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"line 4", "a", "b"}, r.Lines(0))
}

func TestRingConcurrentWrites(t *testing.T) {
	r := NewRing(100)
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = fmt.Fprintf(r, "g%d-%d\n", g, i)
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, uint64(500), r.Total())
	assert.Len(t, r.Lines(0), 100)
}
