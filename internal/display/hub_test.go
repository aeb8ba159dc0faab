package display

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestHubHistoryRing(t *testing.T) {
	h := NewHub(3)
	for i := 1; i <= 5; i++ {
		h.Plot(float64(i), -float64(i))
	}

	want := []Point{{3, -3}, {4, -4}, {5, -5}}
	if diff := cmp.Diff(want, h.History()); diff != "" {
		t.Errorf("History() mismatch (-want +got):\n%s", diff)
	}
}

func TestHubHistoryPartial(t *testing.T) {
	h := NewHub(8)
	h.Plot(1, 2)

	want := []Point{{1, 2}}
	if diff := cmp.Diff(want, h.History()); diff != "" {
		t.Errorf("History() mismatch (-want +got):\n%s", diff)
	}
}

func TestHubSubscriberReceivesEvents(t *testing.T) {
	h := NewHub(8)
	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)

	h.Plot(1.5, -0.5)
	h.Clear()
	h.BringToFront()

	got := []Event{<-ch, <-ch, <-ch}
	want := []Event{
		{Kind: KindPoint, X: 1.5, Y: -0.5},
		{Kind: KindClear},
		{Kind: KindFocus},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestHubSlowSubscriberDropsNotBlocks(t *testing.T) {
	h := NewHub(8)
	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)

	// Nothing drains ch. Overfill its buffer; every Plot must return.
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(ch)+10; i++ {
			h.Plot(float64(i), 0)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Plot blocked on a slow subscriber")
	}
	if got := len(h.History()); got != 8 {
		t.Errorf("History() kept %d points, want 8", got)
	}
}

func TestHubClearEmptiesHistory(t *testing.T) {
	h := NewHub(4)
	h.Plot(1, 1)
	h.Plot(2, 2)
	h.Clear()

	if got := h.History(); len(got) != 0 {
		t.Errorf("History() after Clear = %v, want empty", got)
	}
	h.Plot(3, 3)
	if diff := cmp.Diff([]Point{{3, 3}}, h.History()); diff != "" {
		t.Errorf("History() after refill mismatch (-want +got):\n%s", diff)
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(4)
	id, ch := h.Subscribe()
	h.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Error("channel still open after Unsubscribe")
	}
	// Unsubscribing twice is harmless.
	h.Unsubscribe(id)
}

func TestHubCloseStopsPlots(t *testing.T) {
	h := NewHub(4)
	_, ch := h.Subscribe()
	if err := h.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel still open after Close")
	}
	h.Plot(1, 1) // must not panic on the closed hub
}

func TestStreamDeliversSSE(t *testing.T) {
	h := NewHub(8)
	mux := http.NewServeMux()
	h.AttachRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/display/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /display/stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	reader := bufio.NewReader(resp.Body)
	// Discard the opening ping comment, then plot once the subscriber is
	// registered. Ping read implies the handler has subscribed.
	if line, err := reader.ReadString('\n'); err != nil || !strings.HasPrefix(line, ":") {
		t.Fatalf("expected ping comment, got %q (err %v)", line, err)
	}
	h.Plot(0.25, -0.75)

	var data string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			break
		}
	}

	var ev Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	want := Event{Kind: KindPoint, X: 0.25, Y: -0.75}
	if ev != want {
		t.Errorf("event = %+v, want %+v", ev, want)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	h := NewHub(8)
	h.Plot(1, 2)
	mux := http.NewServeMux()
	h.AttachRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/display/history", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var pts []Point
	if err := json.Unmarshal(rec.Body.Bytes(), &pts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff([]Point{{1, 2}}, pts); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestChartEndpointRenders(t *testing.T) {
	h := NewHub(8)
	h.Plot(1, 2)
	mux := http.NewServeMux()
	h.AttachRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/display/chart", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "echarts") {
		t.Error("chart page does not reference echarts")
	}
}
