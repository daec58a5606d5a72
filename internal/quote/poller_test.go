package quote

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

// mockFetcher はクォート取得のモック。呼び出し順と時刻を記録する。
type mockFetcher struct {
	mu         sync.Mutex
	getQuoteFn func(ctx context.Context, symbol string) (*Quote, error)
	symbols    []string
	times      []time.Time
}

func (m *mockFetcher) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	m.mu.Lock()
	m.symbols = append(m.symbols, symbol)
	m.times = append(m.times, time.Now())
	m.mu.Unlock()
	if m.getQuoteFn != nil {
		return m.getQuoteFn(ctx, symbol)
	}
	return &Quote{Symbol: symbol, Price: 1}, nil
}

func TestPoller_Poll_SequentialInOrderWithPacing(t *testing.T) {
	f := &mockFetcher{}
	interval := 40 * time.Millisecond
	p := NewPoller(f, interval, nil)

	symbols := []string{"AAPL", "MSFT", "2330.TW"}
	results, err := p.Poll(context.Background(), symbols, nil)
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}

	if !slices.Equal(f.symbols, symbols) {
		t.Errorf("fetch order = %v, want %v", f.symbols, symbols)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	for i, r := range results {
		if r.Symbol != symbols[i] || r.Quote == nil || r.Err != nil {
			t.Errorf("results[%d] = %+v", i, r)
		}
	}

	// レートリミッターの誤差を見込んで間隔の8割以上空いていることを確認する
	for i := 1; i < len(f.times); i++ {
		if gap := f.times[i].Sub(f.times[i-1]); gap < interval*8/10 {
			t.Errorf("gap between call %d and %d = %v, want >= ~%v", i-1, i, gap, interval)
		}
	}
}

func TestPoller_Poll_ContinuesAfterError(t *testing.T) {
	f := &mockFetcher{getQuoteFn: func(ctx context.Context, symbol string) (*Quote, error) {
		if symbol == "BAD" {
			return nil, errors.New("no quote for symbol BAD")
		}
		return &Quote{Symbol: symbol}, nil
	}}
	p := NewPoller(f, time.Millisecond, nil)

	var streamed []string
	results, err := p.Poll(context.Background(), []string{"A", "BAD", "C"}, func(r Result) {
		streamed = append(streamed, r.Symbol)
	})
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}

	if results[1].Err == nil || results[1].Quote != nil {
		t.Errorf("results[1] = %+v, want error only", results[1])
	}
	if results[2].Quote == nil {
		t.Error("poll should continue after a failed symbol")
	}
	if !slices.Equal(streamed, []string{"A", "BAD", "C"}) {
		t.Errorf("streamed = %v", streamed)
	}
}

func TestPoller_Poll_StopsOnCancel(t *testing.T) {
	f := &mockFetcher{}
	p := NewPoller(f, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, err := p.Poll(ctx, []string{"A", "B", "C"}, func(r Result) {
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(results) != 1 {
		t.Errorf("len(results) = %d, want 1", len(results))
	}
	if len(f.symbols) != 1 {
		t.Errorf("fetch count = %d, want 1", len(f.symbols))
	}
}

func TestPoller_Poll_Empty(t *testing.T) {
	p := NewPoller(&mockFetcher{}, time.Second, nil)
	results, err := p.Poll(context.Background(), nil, nil)
	if err != nil || len(results) != 0 {
		t.Errorf("Poll(nil) = (%v, %v)", results, err)
	}
}
