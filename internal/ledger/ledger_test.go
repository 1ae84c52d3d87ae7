package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// fakeStore is an in-memory PositionStore with switchable failure.
type fakeStore struct {
	data map[string]domain.Position
	fail bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]domain.Position)}
}

var errStoreDown = errors.New("store down")

func (s *fakeStore) Put(_ context.Context, _ domain.Namespace, p domain.Position) error {
	if s.fail {
		return errStoreDown
	}
	s.data[p.Ticker] = p
	return nil
}

func (s *fakeStore) Delete(_ context.Context, _ domain.Namespace, ticker string) error {
	if s.fail {
		return errStoreDown
	}
	delete(s.data, ticker)
	return nil
}

func (s *fakeStore) List(_ context.Context, _ domain.Namespace) ([]domain.Position, error) {
	if s.fail {
		return nil, errStoreDown
	}
	out := make([]domain.Position, 0, len(s.data))
	for _, p := range s.data {
		out = append(out, p)
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(store domain.PositionStore, ns domain.Namespace) *Ledger {
	return New(store, Config{
		Namespace:             ns,
		EdgeIncreaseThreshold: 5.0,
		ExitEdgePct:           1.0,
	}, testLogger())
}

func testPosition(ticker string, edge float64) domain.Position {
	return domain.Position{
		Ticker:        ticker,
		Contracts:     3,
		AvgPriceCents: 85,
		EntryEdge:     edge,
		LastEdge:      edge,
		Strike:        90_500,
		SpotAtEntry:   90_000,
		OpenedAt:      time.Now().UTC(),
		ExpiryTime:    time.Now().UTC().Add(45 * time.Minute),
	}
}

func TestOpenPersistsBeforeMemory(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store, domain.NamespacePaper)

	p := testPosition("KXBTCD-25AUG2915-T90499.99", 12.0)
	require.NoError(t, l.Open(context.Background(), p))

	assert.True(t, l.Has(p.Ticker))
	_, persisted := store.data[p.Ticker]
	assert.True(t, persisted)
}

func TestOpenRejectsDuplicate(t *testing.T) {
	l := newTestLedger(newFakeStore(), domain.NamespacePaper)
	p := testPosition("T1", 12.0)
	require.NoError(t, l.Open(context.Background(), p))
	assert.Error(t, l.Open(context.Background(), p))
}

func TestLivePersistFailureAbortsMutation(t *testing.T) {
	store := newFakeStore()
	store.fail = true
	l := newTestLedger(store, domain.NamespaceLive)

	err := l.Open(context.Background(), testPosition("T1", 12.0))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.False(t, l.Has("T1"), "memory must not change when the durable write fails")
}

func TestPaperPersistFailureDegradesToMemory(t *testing.T) {
	store := newFakeStore()
	store.fail = true
	l := newTestLedger(store, domain.NamespacePaper)

	require.NoError(t, l.Open(context.Background(), testPosition("T1", 12.0)))
	assert.True(t, l.Has("T1"))
}

func TestAddRecomputesWeightedAverage(t *testing.T) {
	l := newTestLedger(newFakeStore(), domain.NamespacePaper)
	p := testPosition("T1", 12.0) // 3 contracts at 85¢
	require.NoError(t, l.Open(context.Background(), p))

	require.NoError(t, l.Add(context.Background(), "T1", 2, 90, 18.0))

	got, ok := l.Get("T1")
	require.True(t, ok)
	assert.Equal(t, 5, got.Contracts)
	// (3*85 + 2*90) / 5 = 87
	assert.InDelta(t, 87.0, got.AvgPriceCents, 1e-9)
	assert.Equal(t, 18.0, got.LastEdge)
}

func TestAddUnknownTicker(t *testing.T) {
	l := newTestLedger(newFakeStore(), domain.NamespacePaper)
	err := l.Add(context.Background(), "missing", 1, 80, 15.0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCanAddRequiresEdgeImprovement(t *testing.T) {
	l := newTestLedger(newFakeStore(), domain.NamespacePaper)
	require.NoError(t, l.Open(context.Background(), testPosition("T1", 12.0)))

	assert.False(t, l.CanAdd("T1", 12.0), "no improvement")
	assert.False(t, l.CanAdd("T1", 16.9), "below the 5pp threshold")
	assert.True(t, l.CanAdd("T1", 17.0), "exactly at the threshold")
	assert.True(t, l.CanAdd("T2", 10.0), "unknown ticker can always open")
}

func TestRefreshEdgeSkipsStore(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store, domain.NamespacePaper)
	require.NoError(t, l.Open(context.Background(), testPosition("T1", 12.0)))

	store.fail = true // a store write would now error; refresh must not touch it
	l.RefreshEdge("T1", 3.5)

	got, _ := l.Get("T1")
	assert.Equal(t, 3.5, got.LastEdge)
	// Durable copy still carries the entry edge.
	assert.Equal(t, 12.0, store.data["T1"].LastEdge)
}

func TestShouldExitAtFloor(t *testing.T) {
	l := newTestLedger(newFakeStore(), domain.NamespacePaper)
	require.NoError(t, l.Open(context.Background(), testPosition("T1", 12.0)))

	l.RefreshEdge("T1", 1.0)
	p, _ := l.Get("T1")
	assert.True(t, l.ShouldExit(p), "edge at the floor flags exit")

	l.RefreshEdge("T1", 1.01)
	p, _ = l.Get("T1")
	assert.False(t, l.ShouldExit(p))
}

func TestCloseRemovesEverywhere(t *testing.T) {
	store := newFakeStore()
	l := newTestLedger(store, domain.NamespacePaper)
	require.NoError(t, l.Open(context.Background(), testPosition("T1", 12.0)))

	closed, err := l.Close(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "T1", closed.Ticker)
	assert.False(t, l.Has("T1"))
	_, persisted := store.data["T1"]
	assert.False(t, persisted)
}

func TestFreezeBlocksExitAndAdd(t *testing.T) {
	l := newTestLedger(newFakeStore(), domain.NamespacePaper)
	require.NoError(t, l.Open(context.Background(), testPosition("T1", 12.0)))

	l.RefreshEdge("T1", 0.5)
	l.Freeze("T1")

	p, _ := l.Get("T1")
	assert.True(t, l.Frozen("T1"))
	assert.False(t, l.ShouldExit(p), "frozen positions are not retried")
	assert.False(t, l.CanAdd("T1", 99.0))

	// The entry itself is untouched.
	assert.True(t, l.Has("T1"))
}

func TestReconcilePurgesExpired(t *testing.T) {
	store := newFakeStore()
	live := testPosition("LIVE", 12.0)
	expired := testPosition("EXPIRED", 12.0)
	expired.ExpiryTime = time.Now().UTC().Add(-time.Minute)
	store.data[live.Ticker] = live
	store.data[expired.Ticker] = expired

	l := newTestLedger(store, domain.NamespacePaper)
	require.NoError(t, l.Reconcile(context.Background()))

	assert.True(t, l.Has("LIVE"))
	assert.False(t, l.Has("EXPIRED"))
	_, stillStored := store.data["EXPIRED"]
	assert.False(t, stillStored, "expired entries are purged from the store")
}

func TestReconcileLiveFailsClosed(t *testing.T) {
	store := newFakeStore()
	store.fail = true

	l := newTestLedger(store, domain.NamespaceLive)
	assert.Error(t, l.Reconcile(context.Background()))

	lp := newTestLedger(store, domain.NamespacePaper)
	assert.NoError(t, lp.Reconcile(context.Background()), "paper starts empty instead")
	assert.Equal(t, 0, lp.Len())
}

func TestExposureAndContractTotals(t *testing.T) {
	l := newTestLedger(newFakeStore(), domain.NamespacePaper)
	p1 := testPosition("T1", 12.0) // 3 × 85¢ = $2.55
	p2 := testPosition("T2", 14.0)
	p2.Contracts = 5
	p2.AvgPriceCents = 60 // 5 × 60¢ = $3.00
	require.NoError(t, l.Open(context.Background(), p1))
	require.NoError(t, l.Open(context.Background(), p2))

	assert.InDelta(t, 5.55, l.TotalExposure(), 1e-9)
	assert.Equal(t, 8, l.TotalContracts())
	assert.Equal(t, 2, l.Len())
	assert.Len(t, l.Snapshot(), 2)
}

// The decision loop mutates the book while HTTP request goroutines read
// exposure and snapshots from it. Run with -race.
func TestConcurrentReadsDuringMutation(t *testing.T) {
	l := newTestLedger(newFakeStore(), domain.NamespacePaper)
	require.NoError(t, l.Open(context.Background(), testPosition("T1", 12.0)))

	const iterations = 1000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			l.RefreshEdge("T1", float64(i%20))
			ticker := "T2"
			if i%2 == 0 {
				_ = l.Open(context.Background(), testPosition(ticker, 12.0))
			} else {
				_, _ = l.Close(context.Background(), ticker)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			for _, p := range l.Snapshot() {
				_ = l.ShouldExit(p)
			}
			_ = l.TotalExposure()
			_ = l.Len()
		}
	}()

	wg.Wait()
	assert.True(t, l.Has("T1"))
}
