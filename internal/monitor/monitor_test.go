package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/shopmon/internal/product"
	"github.com/hitoshi/shopmon/internal/stores"
	"github.com/hitoshi/shopmon/internal/webhook"
)

const feedOneRestocked = `{"products":[{"id":1,"title":"X","handle":"x","updated_at":"t1","vendor":"V",` +
	`"variants":[{"id":10,"title":"US 9","available":true,"price":"5"}],"images":[]}]}`

func destination(url string) *stores.Destination {
	return &stores.Destination{
		Name:     "dest",
		URL:      url,
		Settings: stores.Settings{},
	}
}

func newTestMonitor(t *testing.T, site *stores.Site, sender Sender) (*Monitor, chan Signal) {
	t.Helper()
	signals := make(chan Signal, 16)
	m := NewMonitor(
		site,
		&http.Client{Timeout: 5 * time.Second},
		sender,
		NewRegistry(),
		signals,
		testCollector(),
		testLogger(),
	)
	return m, signals
}

// previousOneUnavailable は商品1（バリアント10が在庫切れ）の前回スナップショット。
func previousOneUnavailable() []product.Minimal {
	return []product.Minimal{{
		ID:        1,
		UpdatedAt: "t0",
		Variants:  []product.MinimalVariant{{ID: 10, Available: false}},
	}}
}

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestTick_FirstPollEmitsNothing(t *testing.T) {
	srv := feedServer(t, feedOneRestocked)
	sender := &mockSender{}
	site := &stores.Site{
		Name: "kith", URL: srv.URL, Logo: "logo", Delay: time.Millisecond,
		Restock: []*stores.Destination{destination("https://hooks.example.com/1")},
	}
	m, _ := newTestMonitor(t, site, sender)

	if !m.tick(context.Background()) {
		t.Fatal("tick should continue")
	}

	if !m.hasPrevious || len(m.previous) != 1 || m.previous[0].ID != 1 {
		t.Errorf("snapshot not recorded: %+v", m.previous)
	}
	time.Sleep(50 * time.Millisecond)
	if sender.callCount() != 0 {
		t.Errorf("first poll must not fire webhooks, got %d", sender.callCount())
	}
}

func TestTick_Restock(t *testing.T) {
	srv := feedServer(t, feedOneRestocked)
	sender := &mockSender{}
	site := &stores.Site{
		Name: "kith", URL: srv.URL, Logo: "logo", Delay: time.Millisecond,
		Restock: []*stores.Destination{destination("https://hooks.example.com/1")},
	}
	m, _ := newTestMonitor(t, site, sender)
	m.previous = previousOneUnavailable()
	m.hasPrevious = true

	m.tick(context.Background())

	waitFor(t, "restock delivery", func() bool { return sender.callCount() == 1 })
	call := sender.call(0)
	if call.url != "https://hooks.example.com/1" {
		t.Errorf("unexpected destination: %s", call.url)
	}
	e := call.msg.Embeds[0]
	if *e.Title != "X" {
		t.Errorf("unexpected title: %q", *e.Title)
	}
	if *e.URL != srv.URL+"/products/x" {
		t.Errorf("unexpected url: %q", *e.URL)
	}
	if e.Fields[0].Value != "Restock" || e.Fields[1].Value != "V" || e.Fields[2].Value != "5" {
		t.Errorf("unexpected fields: %+v", e.Fields)
	}

	// スナップショットはイベントの有無に関わらず置き換わる
	if m.previous[0].UpdatedAt != "t1" {
		t.Errorf("snapshot not replaced: %+v", m.previous[0])
	}
}

func TestTick_NoEventWithoutAvailabilityFlip(t *testing.T) {
	// updated_atは変わるがバリアントは在庫あり→在庫切れの方向のみ
	feed := `{"products":[{"id":1,"title":"X","handle":"x","updated_at":"t1","vendor":"V",` +
		`"variants":[{"id":10,"title":"a","available":true,"price":"5"},` +
		`{"id":11,"title":"b","available":false,"price":"5"}],"images":[]}]}`
	srv := feedServer(t, feed)
	sender := &mockSender{}
	site := &stores.Site{
		Name: "kith", URL: srv.URL, Logo: "logo", Delay: time.Millisecond,
		Restock: []*stores.Destination{destination("https://hooks.example.com/1")},
	}
	m, _ := newTestMonitor(t, site, sender)
	m.previous = []product.Minimal{{
		ID:        1,
		UpdatedAt: "t0",
		Variants: []product.MinimalVariant{
			{ID: 10, Available: true},
			{ID: 11, Available: true},
		},
	}}
	m.hasPrevious = true

	m.tick(context.Background())

	time.Sleep(50 * time.Millisecond)
	if sender.callCount() != 0 {
		t.Errorf("expected no event, got %d deliveries", sender.callCount())
	}
}

func TestTick_MinimumFilter(t *testing.T) {
	srv := feedServer(t, feedOneRestocked)
	sender := &mockSender{}
	dest := destination("https://hooks.example.com/1")
	dest.Settings.Minimum = 2
	site := &stores.Site{
		Name: "kith", URL: srv.URL, Logo: "logo", Delay: time.Millisecond,
		Restock: []*stores.Destination{dest},
	}
	m, _ := newTestMonitor(t, site, sender)
	m.previous = previousOneUnavailable()
	m.hasPrevious = true

	m.tick(context.Background())

	time.Sleep(50 * time.Millisecond)
	if sender.callCount() != 0 {
		t.Errorf("minimum filter should suppress the delivery, got %d", sender.callCount())
	}
}

func TestTick_NewProduct(t *testing.T) {
	feed := `{"products":[` +
		`{"id":1,"title":"X","handle":"x","updated_at":"t0","vendor":"V","variants":[],"images":[]},` +
		`{"id":2,"title":"Y","handle":"y","updated_at":"t0","vendor":"V",` +
		`"variants":[{"id":20,"title":"a","available":true,"price":"9"}],"images":[]}]}`
	srv := feedServer(t, feed)
	sender := &mockSender{}
	site := &stores.Site{
		Name: "kith", URL: srv.URL, Logo: "logo", Delay: time.Millisecond,
		Restock: []*stores.Destination{destination("https://hooks.example.com/1")},
	}
	m, _ := newTestMonitor(t, site, sender)
	m.previous = []product.Minimal{{ID: 1, UpdatedAt: "t0"}}
	m.hasPrevious = true

	m.tick(context.Background())

	waitFor(t, "new product delivery", func() bool { return sender.callCount() == 1 })
	e := sender.call(0).msg.Embeds[0]
	if *e.Title != "Y" {
		t.Errorf("unexpected title: %q", *e.Title)
	}
	if e.Fields[0].Value != "New Product" {
		t.Errorf("unexpected event field: %+v", e.Fields[0])
	}
}

func TestTick_PasswordUpThenDown(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"products":[]}`)
	}))
	t.Cleanup(srv.Close)

	sender := &mockSender{}
	dest := destination("https://hooks.example.com/1")
	site := &stores.Site{
		Name: "kith", URL: srv.URL, Logo: "logo", Delay: time.Millisecond,
		PasswordUp:   []*stores.Destination{dest},
		PasswordDown: []*stores.Destination{dest},
	}
	m, _ := newTestMonitor(t, site, sender)

	m.tick(context.Background())
	waitFor(t, "password up delivery", func() bool { return sender.callCount() == 1 })
	if !m.passwordPage {
		t.Error("password flag should be set after 401")
	}
	if *sender.call(0).msg.Embeds[0].Title != "Password Page Up!" {
		t.Errorf("unexpected title: %q", *sender.call(0).msg.Embeds[0].Title)
	}

	m.tick(context.Background())
	waitFor(t, "password down delivery", func() bool { return sender.callCount() == 2 })
	if m.passwordPage {
		t.Error("password flag should clear after 200")
	}
	if *sender.call(1).msg.Embeds[0].Title != "Password Page Down!" {
		t.Errorf("unexpected title: %q", *sender.call(1).msg.Embeds[0].Title)
	}

	// 200が続いてもイベントは繰り返さない
	m.tick(context.Background())
	time.Sleep(50 * time.Millisecond)
	if sender.callCount() != 2 {
		t.Errorf("repeated 200 should not emit again, got %d", sender.callCount())
	}
}

func TestTick_InvalidEndpointPruned(t *testing.T) {
	srv := feedServer(t, feedOneRestocked)
	bad := "https://hooks.example.com/bad"
	good := "https://hooks.example.com/good"
	sender := &mockSender{
		sendFunc: func(url string, _ *webhook.Message) webhook.Status {
			if url == bad {
				return webhook.Status{Kind: webhook.StatusInvalid}
			}
			return webhook.Status{Kind: webhook.StatusSuccess}
		},
	}
	site := &stores.Site{
		Name: "kith", URL: srv.URL, Logo: "logo", Delay: time.Millisecond,
		Restock: []*stores.Destination{destination(bad), destination(good)},
	}
	m, signals := newTestMonitor(t, site, sender)
	m.previous = previousOneUnavailable()
	m.hasPrevious = true

	m.tick(context.Background())
	waitFor(t, "both deliveries", func() bool { return sender.callCount() == 2 })
	waitFor(t, "registry entry", func() bool { return m.registry.Len() == 1 })

	select {
	case sig := <-signals:
		if sig.Kind != SignalWebhookInvalid || sig.URL != bad {
			t.Errorf("unexpected signal: %+v", sig)
		}
	default:
		t.Fatal("expected webhook invalid signal")
	}

	// 次のティックの先頭で無効な配信先が取り除かれる
	m.previous = previousOneUnavailable()
	m.tick(context.Background())
	if len(site.Restock) != 1 || site.Restock[0].URL != good {
		t.Fatalf("expected only the valid destination, got %+v", site.Restock)
	}

	waitFor(t, "delivery to remaining destination", func() bool { return sender.callCount() == 3 })
	if sender.call(2).url != good {
		t.Errorf("unexpected destination: %s", sender.call(2).url)
	}
}

func TestTick_TerminatesWithoutDestinations(t *testing.T) {
	url := "https://hooks.example.com/1"
	site := &stores.Site{
		Name: "kith", URL: "http://localhost:0", Logo: "logo", Delay: time.Millisecond,
		Restock: []*stores.Destination{destination(url)},
	}
	m, _ := newTestMonitor(t, site, &mockSender{})
	m.registry.Add(url)

	if m.tick(context.Background()) {
		t.Error("tick should report termination when every list is empty")
	}
}

func TestTick_OfflineEdges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"products":[]}`)
	}))
	srv.Close()

	sender := &mockSender{}
	site := &stores.Site{
		Name: "kith", URL: srv.URL, Logo: "logo", Delay: time.Millisecond,
		Restock: []*stores.Destination{destination("https://hooks.example.com/1")},
	}
	m, signals := newTestMonitor(t, site, sender)

	m.tick(context.Background())
	if m.online {
		t.Error("monitor should be offline after transport failure")
	}
	select {
	case sig := <-signals:
		if sig.Kind != SignalSiteOffline {
			t.Errorf("unexpected signal: %+v", sig)
		}
	default:
		t.Fatal("expected offline signal")
	}

	// 連続する失敗では信号を繰り返さない
	m.tick(context.Background())
	select {
	case sig := <-signals:
		t.Errorf("unexpected repeated signal: %+v", sig)
	default:
	}

	// 回復時に1回だけオンライン信号を出す
	live := feedServer(t, `{"products":[]}`)
	site.URL = live.URL
	m.tick(context.Background())
	if !m.online {
		t.Error("monitor should be online after recovery")
	}
	select {
	case sig := <-signals:
		if sig.Kind != SignalSiteOnline {
			t.Errorf("unexpected signal: %+v", sig)
		}
	default:
		t.Fatal("expected online signal")
	}
}

func TestTick_RateLimitedEdge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	sender := &mockSender{}
	site := &stores.Site{
		Name: "kith", URL: srv.URL, Logo: "logo", Delay: time.Millisecond,
		Restock: []*stores.Destination{destination("https://hooks.example.com/1")},
	}
	m, _ := newTestMonitor(t, site, sender)

	m.tick(context.Background())
	if !m.rateLimited {
		t.Error("rate limited flag should be set after 429")
	}
	m.tick(context.Background())

	time.Sleep(50 * time.Millisecond)
	if sender.callCount() != 0 {
		t.Errorf("429 must not emit events, got %d", sender.callCount())
	}
}

func TestTick_DecodeFailureKeepsSnapshot(t *testing.T) {
	srv := feedServer(t, `{"products": [not json`)
	sender := &mockSender{}
	site := &stores.Site{
		Name: "kith", URL: srv.URL, Logo: "logo", Delay: time.Millisecond,
		Restock: []*stores.Destination{destination("https://hooks.example.com/1")},
	}
	m, _ := newTestMonitor(t, site, sender)
	m.previous = previousOneUnavailable()
	m.hasPrevious = true

	m.tick(context.Background())

	time.Sleep(50 * time.Millisecond)
	if sender.callCount() != 0 {
		t.Error("decode failure must not emit events")
	}
	if m.previous[0].UpdatedAt != "t0" {
		t.Errorf("snapshot must not change on decode failure: %+v", m.previous[0])
	}
}

func TestFetch_BrowserHeaders(t *testing.T) {
	var got http.Header
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"products":[]}`)
	}))
	t.Cleanup(srv.Close)

	site := &stores.Site{
		Name: "kith", URL: srv.URL, Logo: "logo", Delay: time.Millisecond,
		Restock: []*stores.Destination{destination("https://hooks.example.com/1")},
	}
	m, _ := newTestMonitor(t, site, &mockSender{})
	m.tick(context.Background())

	if gotPath != "/products.json" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	want := map[string]string{
		"Pragma":                    "no-cache",
		"Cache-Control":             "no-cache",
		"Upgrade-Insecure-Requests": "1",
		"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/86.0.4240.198 Safari/537.36",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-User":            "?1",
		"Sec-Fetch-Dest":            "document",
		"Accept-Language":           "en-US,en;q=0.9",
	}
	for name, value := range want {
		if got.Get(name) != value {
			t.Errorf("header %s = %q, want %q", name, got.Get(name), value)
		}
	}
	if got.Get("Accept") == "" {
		t.Error("accept header missing")
	}
}
