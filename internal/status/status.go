// Package status は監視の状態を公開するHTTPサーバーを提供する。
// ヘルスチェック、Prometheusスクレイプ、状態スナップショットの
// 3つのエンドポイントを持つ。
package status

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/shopmon/internal/metrics"
	"github.com/hitoshi/shopmon/internal/middleware"
	"github.com/hitoshi/shopmon/internal/monitor"
	"github.com/hitoshi/shopmon/internal/stores"
)

// SiteStatus は1サイト分の起動時構成のスナップショット。
// 配信先数は解決直後の値で、無効化による減少は反映しない。
type SiteStatus struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	DelayMs      int64  `json:"delay_ms"`
	Restock      int    `json:"restock_destinations"`
	PasswordUp   int    `json:"password_up_destinations"`
	PasswordDown int    `json:"password_down_destinations"`
}

// Snapshot は/api/statusのレスポンス。
type Snapshot struct {
	UptimeSeconds    int64        `json:"uptime_seconds"`
	Sites            []SiteStatus `json:"sites"`
	InvalidEndpoints int          `json:"invalid_endpoints"`
}

// Handler は状態スナップショットを提供する。
type Handler struct {
	sites     []SiteStatus
	registry  *monitor.Registry
	startedAt time.Time
}

// NewHandler は解決済みサイトから起動時構成を写し取ったHandlerを生成する。
// モニターが動き出した後のサイト構造には触れない。
func NewHandler(sites []*stores.Site, registry *monitor.Registry) *Handler {
	snapshot := make([]SiteStatus, 0, len(sites))
	for _, s := range sites {
		snapshot = append(snapshot, SiteStatus{
			Name:         s.Name,
			URL:          s.URL,
			DelayMs:      s.Delay.Milliseconds(),
			Restock:      len(s.Restock),
			PasswordUp:   len(s.PasswordUp),
			PasswordDown: len(s.PasswordDown),
		})
	}
	return &Handler{
		sites:     snapshot,
		registry:  registry,
		startedAt: time.Now(),
	}
}

// Status は現在の状態スナップショットを返す。
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	snap := Snapshot{
		UptimeSeconds:    int64(time.Since(h.startedAt).Seconds()),
		Sites:            h.sites,
		InvalidEndpoints: h.registry.Len(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// Healthz はヘルスチェックに応答する。
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Sites       []*stores.Site
	Registry    *monitor.Registry
	Gatherer    prometheus.Gatherer
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger
}

// NewRouter はステータスサーバーのルーティングとミドルウェアチェーンを
// 構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → RateLimitMiddleware
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(deps.RateLimiter.Middleware())

	h := NewHandler(deps.Sites, deps.Registry)

	r.Get("/healthz", Healthz)
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	r.Get("/api/status", h.Status)

	return r
}
