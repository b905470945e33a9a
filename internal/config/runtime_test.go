package config

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := Defaults()
	rt, err := NewRuntime(SettingsFrom(&cfg))
	require.NoError(t, err)
	return rt
}

func TestSettingsFrom(t *testing.T) {
	cfg := Defaults()
	cfg.Trading.Symbols = []string{"btc/usdt", "BTC/USDT", "eth/usdt"}
	cfg.Trading.Mode = "LIVE"

	s := SettingsFrom(&cfg)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, s.Symbols)
	assert.Equal(t, domain.TradeModeLive, s.Mode)
	assert.Equal(t, 2*time.Second, s.PollInterval)
}

func TestRuntime_SnapshotIsIsolated(t *testing.T) {
	rt := newTestRuntime(t)

	snap := rt.Snapshot()
	snap.Symbols[0] = "MUTATED/USDT"
	snap.MinSpreadBps = 999

	again := rt.Snapshot()
	assert.Equal(t, "BTC/USDT", again.Symbols[0])
	assert.Equal(t, 20.0, again.MinSpreadBps)
}

func TestRuntime_UpdateAppliesAndSignals(t *testing.T) {
	rt := newTestRuntime(t)
	before := rt.Snapshot()
	changed := rt.Changed()

	got, err := rt.Update(func(s *domain.Settings) error {
		s.MinSpreadBps = 35
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 35.0, got.MinSpreadBps)
	assert.Equal(t, 35.0, rt.Snapshot().MinSpreadBps)
	assert.Equal(t, 20.0, before.MinSpreadBps, "earlier snapshot unchanged")

	select {
	case <-changed:
	default:
		t.Fatal("changed channel not closed")
	}
	select {
	case <-rt.Changed():
		t.Fatal("new changed channel already closed")
	default:
	}
}

func TestRuntime_UpdateRejectsInvalid(t *testing.T) {
	rt := newTestRuntime(t)

	_, err := rt.Update(func(s *domain.Settings) error {
		s.Symbols = append(s.Symbols, "NOSLASH")
		return nil
	})
	require.ErrorIs(t, err, domain.ErrInvalidSettings)
	assert.NotContains(t, rt.Snapshot().Symbols, "NOSLASH")

	boom := errors.New("boom")
	_, err = rt.Update(func(s *domain.Settings) error {
		s.MinSpreadBps = 1
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 20.0, rt.Snapshot().MinSpreadBps)
}

func TestRuntime_EmptySymbolsAllowed(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.Update(func(s *domain.Settings) error {
		s.Symbols = nil
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, rt.Snapshot().Symbols)
}

func TestRuntime_ConcurrentReadersSeeWholeUpdates(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.Update(func(s *domain.Settings) error {
		s.SlippageBps = 10
		s.MinSpreadBps = 20
		return nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s := rt.Snapshot()
				// The two fields always move together.
				assert.Equal(t, s.MinSpreadBps, s.SlippageBps*2)
			}
		}()
	}

	for i := 1; i <= 50; i++ {
		_, err := rt.Update(func(s *domain.Settings) error {
			s.SlippageBps = float64(i)
			s.MinSpreadBps = float64(2 * i)
			return nil
		})
		require.NoError(t, err)
	}
	wg.Wait()
}
