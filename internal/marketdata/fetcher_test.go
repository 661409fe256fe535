package marketdata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mechnotech/alor-api/internal/api"
)

// fakeSource serves canned books and errors, optionally after a delay.
type fakeSource struct {
	books map[string]*api.OrderbookResponse
	errs  map[string]error
	delay time.Duration

	mu     sync.Mutex
	depths map[string]int

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeSource) GetOrderbook(ctx context.Context, exchange, symbol string, depth int) (*api.OrderbookResponse, error) {
	f.calls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	for {
		old := f.maxInFlight.Load()
		if current <= old || f.maxInFlight.CompareAndSwap(old, current) {
			break
		}
	}

	f.mu.Lock()
	if f.depths == nil {
		f.depths = make(map[string]int)
	}
	f.depths[symbol] = depth
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	return f.books[symbol], nil
}

func book(ts int64, bid, ask string) *api.OrderbookResponse {
	return &api.OrderbookResponse{
		Timestamp: ts,
		Bids:      []api.APIPriceLevel{{Price: decimal.RequireFromString(bid), Volume: 1}},
		Asks:      []api.APIPriceLevel{{Price: decimal.RequireFromString(ask), Volume: 2}},
	}
}

func TestFetchOrderBooks_EmptyInput(t *testing.T) {
	src := &fakeSource{}
	f := NewFetcher(src)

	tests := []struct {
		name    string
		symbols []string
	}{
		{"nil", nil},
		{"empty", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := f.FetchOrderBooks(context.Background(), "MOEX", 5, tt.symbols...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if results == nil {
				t.Fatal("results should be an empty map, not nil")
			}
			if len(results) != 0 {
				t.Errorf("len(results) = %d, want 0", len(results))
			}
		})
	}

	if src.calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", src.calls.Load())
	}
}

func TestFetchOrderBooks_NoSource(t *testing.T) {
	f := NewFetcher(nil)
	if _, err := f.FetchOrderBooks(context.Background(), "MOEX", 5, "SBER"); !errors.Is(err, ErrNoSource) {
		t.Errorf("err = %v, want ErrNoSource", err)
	}

	var nilFetcher *Fetcher
	if _, err := nilFetcher.FetchOrderBooks(context.Background(), "MOEX", 5); !errors.Is(err, ErrNoSource) {
		t.Errorf("err = %v, want ErrNoSource", err)
	}
}

func TestFetchOrderBooks_FailureIsolation(t *testing.T) {
	src := &fakeSource{
		books: map[string]*api.OrderbookResponse{"B": book(1700000000, "10.1", "10.2")},
		errs:  map[string]error{"A": &api.TransportError{Err: errors.New("connection reset")}},
	}
	f := NewFetcher(src)

	results, err := f.FetchOrderBooks(context.Background(), "MOEX", 5, "A", "B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	a := results["A"]
	if a.OK {
		t.Error("A should have failed")
	}
	var tErr *api.TransportError
	if !errors.As(a.Err, &tErr) {
		t.Errorf("A.Err = %v, want *api.TransportError", a.Err)
	}
	if a.Bids == nil || a.Asks == nil || len(a.Bids) != 0 || len(a.Asks) != 0 {
		t.Errorf("A sides = %v/%v, want empty", a.Bids, a.Asks)
	}

	b := results["B"]
	if !b.OK || b.Err != nil {
		t.Fatalf("B should have succeeded, got OK=%v Err=%v", b.OK, b.Err)
	}
	if len(b.Bids) != 1 || len(b.Asks) != 1 {
		t.Errorf("B levels = %d/%d, want 1/1", len(b.Bids), len(b.Asks))
	}
	if b.Timestamp != 1700000000 {
		t.Errorf("B.Timestamp = %d, want %d", b.Timestamp, 1700000000)
	}
}

func TestFetchOrderBooks_AllFailStillSucceeds(t *testing.T) {
	src := &fakeSource{
		errs: map[string]error{
			"A": &api.APIError{StatusCode: 404, Message: "Not Found"},
			"B": &api.DecodeError{Err: errors.New("unexpected token")},
		},
	}
	results, err := NewFetcher(src).FetchOrderBooks(context.Background(), "MOEX", 5, "A", "B")
	if err != nil {
		t.Fatalf("batch should not fail when every symbol fails: %v", err)
	}
	for _, sym := range []string{"A", "B"} {
		if results[sym].OK {
			t.Errorf("%s should have failed", sym)
		}
		if results[sym].Symbol != sym {
			t.Errorf("%s.Symbol = %q", sym, results[sym].Symbol)
		}
	}
}

func TestFetchOrderBooks_NilBookIsFailure(t *testing.T) {
	src := &fakeSource{books: map[string]*api.OrderbookResponse{}}
	results, err := NewFetcher(src).FetchOrderBooks(context.Background(), "MOEX", 5, "GHOST")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r := results["GHOST"]; r.OK || !errors.Is(r.Err, ErrEmptyResponse) {
		t.Errorf("GHOST = OK %v Err %v, want ErrEmptyResponse", r.OK, r.Err)
	}
}

func TestFetchOrderBooks_Duplicates(t *testing.T) {
	src := &fakeSource{
		books: map[string]*api.OrderbookResponse{
			"SBER": book(1, "1", "2"),
			"GAZP": book(2, "3", "4"),
		},
	}
	results, err := NewFetcher(src).FetchOrderBooks(context.Background(), "MOEX", 5, "SBER", "GAZP", "SBER")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}
	if src.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", src.calls.Load())
	}
}

func TestFetchOrderBooks_DepthVerbatim(t *testing.T) {
	src := &fakeSource{books: map[string]*api.OrderbookResponse{"SBER": book(1, "1", "2")}}
	for _, depth := range []int{1, 5, 50, 0} {
		if _, err := NewFetcher(src).FetchOrderBooks(context.Background(), "MOEX", depth, "SBER"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		src.mu.Lock()
		got := src.depths["SBER"]
		src.mu.Unlock()
		if got != depth {
			t.Errorf("depth = %d, want %d", got, depth)
		}
	}
}

func TestFetchOrderBooks_Concurrent(t *testing.T) {
	books := make(map[string]*api.OrderbookResponse)
	var symbols []string
	for i := 0; i < 10; i++ {
		sym := "SYM-" + string(rune('A'+i))
		symbols = append(symbols, sym)
		books[sym] = book(int64(i), "1", "2")
	}

	t.Run("unbounded", func(t *testing.T) {
		src := &fakeSource{books: books, delay: 100 * time.Millisecond}
		start := time.Now()
		results, err := NewFetcher(src).FetchOrderBooks(context.Background(), "MOEX", 5, symbols...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 10 {
			t.Errorf("len(results) = %d, want 10", len(results))
		}
		// Sequential would take a full second.
		if elapsed := time.Since(start); elapsed > 600*time.Millisecond {
			t.Errorf("batch took %v, requests did not run concurrently", elapsed)
		}
		if src.maxInFlight.Load() < 2 {
			t.Errorf("maxInFlight = %d, want > 1", src.maxInFlight.Load())
		}
	})

	t.Run("bounded", func(t *testing.T) {
		src := &fakeSource{books: books, delay: 20 * time.Millisecond}
		results, err := NewFetcher(src, WithConcurrency(3)).FetchOrderBooks(context.Background(), "MOEX", 5, symbols...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 10 {
			t.Errorf("len(results) = %d, want 10", len(results))
		}
		if got := src.maxInFlight.Load(); got > 3 {
			t.Errorf("maxInFlight = %d, want <= 3", got)
		}
	})
}

func TestFetchOrderBooks_CallTimeout(t *testing.T) {
	src := &fakeSource{
		books: map[string]*api.OrderbookResponse{"SLOW": book(1, "1", "2")},
		delay: time.Second,
	}
	f := NewFetcher(src, WithCallTimeout(50*time.Millisecond))

	start := time.Now()
	results, err := f.FetchOrderBooks(context.Background(), "MOEX", 5, "SLOW")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r := results["SLOW"]; r.OK || !errors.Is(r.Err, context.DeadlineExceeded) {
		t.Errorf("SLOW = OK %v Err %v, want deadline exceeded", r.OK, r.Err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("call timeout was not applied")
	}
}

func TestFetchOrderBook_Single(t *testing.T) {
	src := &fakeSource{books: map[string]*api.OrderbookResponse{"SBER": book(42, "250.10", "250.20")}}
	r, err := NewFetcher(src).FetchOrderBook(context.Background(), "MOEX", "SBER", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.OK || r.Timestamp != 42 {
		t.Errorf("result = %+v", r)
	}
	spread, ok := r.Spread()
	if !ok || !spread.Equal(decimal.RequireFromString("0.10")) {
		t.Errorf("Spread() = %s, %v, want 0.10", spread, ok)
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"B", "A", "B", "C", "A"})
	want := []string{"B", "A", "C"}
	if len(got) != len(want) {
		t.Fatalf("dedupe = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dedupe[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
