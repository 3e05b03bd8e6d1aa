package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	body, err := FetchJSON(srv.Client(), req, NameDeezer)
	if err != nil {
		t.Fatalf("FetchJSON: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body %q", body)
	}
}

func TestFetchJSONClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
		name   string
	}{
		{http.StatusTooManyRequests, IsRateLimited, "rate limited"},
		{http.StatusNotFound, IsNotFound, "not found"},
		{http.StatusInternalServerError, func(err error) bool {
			var u *ErrUnavailable
			return errors.As(err, &u)
		}, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
			_, err := FetchJSON(srv.Client(), req, NameSpotify)
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("status %d misclassified: %v", tt.status, err)
			}
		})
	}
}

func TestWithRetrySucceedsAfterRateLimits(t *testing.T) {
	const limit = 8

	var attempts, sleeps atomic.Int32
	cfg := RetryConfig{
		Limit:   limit,
		Backoff: 1500 * time.Millisecond,
		Sleep: func(ctx context.Context, d time.Duration) error {
			if d != 1500*time.Millisecond {
				t.Errorf("expected fixed 1.5s backoff, got %v", d)
			}
			sleeps.Add(1)
			return nil
		},
	}

	v, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (string, error) {
		if attempts.Add(1) < limit {
			return "", &ErrRateLimited{Platform: NameDiscogs, Cause: fmt.Errorf("HTTP 429")}
		}
		return "done", nil
	})
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}
	if v != "done" {
		t.Errorf("expected done, got %q", v)
	}
	if got := attempts.Load(); got != limit {
		t.Errorf("expected %d attempts, got %d", limit, got)
	}
	if got := sleeps.Load(); got != limit-1 {
		t.Errorf("expected %d backoff sleeps, got %d", limit-1, got)
	}
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	var attempts int
	cfg := RetryConfig{
		Limit:   3,
		Backoff: time.Second,
		Sleep:   func(ctx context.Context, d time.Duration) error { return nil },
	}

	_, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		return 0, &ErrRateLimited{Platform: NameSpotify, Cause: fmt.Errorf("HTTP 429")}
	})
	if !IsRateLimited(err) {
		t.Fatalf("expected rate-limit error after exhaustion, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryTerminalErrorStopsImmediately(t *testing.T) {
	var attempts int
	cfg := RetryConfig{Limit: 10, Backoff: time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error { return nil }}

	terminal := &ErrUnavailable{Platform: NameDeezer, Cause: fmt.Errorf("boom")}
	_, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		return 0, terminal
	})
	if !errors.Is(err, terminal) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected single attempt, got %d", attempts)
	}
}

func TestFetchAllAccumulatesPagesInOrder(t *testing.T) {
	// Three pages of sizes 100, 100, 40 with next flags true, true, false.
	sizes := []int{100, 100, 40}
	next := []bool{true, true, false}

	var call int
	items, err := FetchAll(context.Background(), 100, func(ctx context.Context, offset int) ([]int, bool, error) {
		if offset != call*100 {
			t.Errorf("expected offset %d, got %d", call*100, offset)
		}
		page := make([]int, sizes[call])
		for i := range page {
			page[i] = offset + i
		}
		more := next[call]
		call++
		return page, more, nil
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(items) != 240 {
		t.Fatalf("expected 240 items, got %d", len(items))
	}
	seen := make(map[int]bool, len(items))
	for i, v := range items {
		if v != i {
			t.Fatalf("items out of order at %d: %d", i, v)
		}
		if seen[v] {
			t.Fatalf("duplicate item %d", v)
		}
		seen[v] = true
	}
}

func TestFetchAllPartialFailureReturnsCollected(t *testing.T) {
	var call int
	items, err := FetchAll(context.Background(), 50, func(ctx context.Context, offset int) ([]string, bool, error) {
		call++
		if call == 2 {
			return nil, false, &ErrUnavailable{Platform: NameDiscogs, Cause: fmt.Errorf("page down")}
		}
		return []string{"a", "b"}, true, nil
	})
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 collected items, got %d", len(items))
	}
}

func TestFetchAllEmptyFailurePropagates(t *testing.T) {
	wantErr := &ErrUnavailable{Platform: NameSpotify, Cause: fmt.Errorf("down")}
	_, err := FetchAll(context.Background(), 50, func(ctx context.Context, offset int) ([]string, bool, error) {
		return nil, false, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected propagated failure, got %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"3:45", 225, true},
		{"0:59", 59, true},
		{"12:00", 720, true},
		{"", 0, false},
		{"abc", 0, false},
		{"3", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseDuration(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseDuration(%q) = %d,%v; want %d,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(225); got != "3:45" {
		t.Errorf("FormatDuration(225) = %q", got)
	}
	if got := FormatDuration(0); got != "" {
		t.Errorf("FormatDuration(0) = %q", got)
	}
}
