// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/shopmon/internal/config"
	"github.com/hitoshi/shopmon/internal/logger"
	"github.com/hitoshi/shopmon/internal/metrics"
	"github.com/hitoshi/shopmon/internal/middleware"
	"github.com/hitoshi/shopmon/internal/monitor"
	"github.com/hitoshi/shopmon/internal/security"
	"github.com/hitoshi/shopmon/internal/status"
	"github.com/hitoshi/shopmon/internal/stores"
	"github.com/hitoshi/shopmon/internal/webhook"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) *config.Config {
	cfg := config.Load()
	logger.SetupDefault(w, cfg.LogLevel)
	return cfg
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("STATUS_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg := Init(w)

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("config_path", cfg.ConfigPath),
		slog.String("status_port", cfg.StatusPort),
	)

	switch cmd {
	case CommandValidate:
		return runValidate(cfg)
	default:
		return runMonitor(cfg)
	}
}

// loadSites は設定ドキュメントを読み込み、配信先付きのサイト一覧へ解決する。
// サイトURLと配信先URLはSSRF観点で事前検証し、問題があれば警告する。
func loadSites(cfg *config.Config) ([]*stores.Site, error) {
	doc, err := config.ReadDocument(cfg.ConfigPath, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration document: %w", err)
	}

	sites := stores.Resolve(doc, slog.Default())
	if len(sites) == 0 {
		return nil, errors.New("no sites with destinations in configuration")
	}

	guard := security.NewSSRFGuard()
	for _, site := range sites {
		if err := guard.ValidateURL(site.URL); err != nil {
			slog.Warn("サイトURLの検証に失敗しました",
				slog.String("site", site.Name),
				slog.String("url", site.URL),
				slog.String("error", err.Error()),
			)
		}
		for _, list := range [][]*stores.Destination{site.Restock, site.PasswordUp, site.PasswordDown} {
			for _, dest := range list {
				if err := guard.ValidateURL(dest.URL); err != nil {
					slog.Warn("配信先URLの検証に失敗しました",
						slog.String("site", site.Name),
						slog.String("destination", dest.Name),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}
	return sites, nil
}

// runValidate は設定ドキュメントを検証して結果を出力する。
// 監視は開始しない。
func runValidate(cfg *config.Config) error {
	sites, err := loadSites(cfg)
	if err != nil {
		return err
	}

	for _, site := range sites {
		slog.Info("site resolved",
			slog.String("site", site.Name),
			slog.String("url", site.URL),
			slog.Duration("delay", site.Delay),
			slog.Int("restock_destinations", len(site.Restock)),
			slog.Int("password_up_destinations", len(site.PasswordUp)),
			slog.Int("password_down_destinations", len(site.PasswordDown)),
		)
	}
	slog.Info("configuration is valid", slog.Int("site_count", len(sites)))
	return nil
}

// runMonitor は監視モードで起動する。
// 設定を解決し、サイトごとのモニターとスーパーバイザーと
// ステータスサーバーを起動する。SIGINTまたはSIGTERMシグナルを
// 受信するとグレースフルシャットダウンを行う。
func runMonitor(cfg *config.Config) error {
	sites, err := loadSites(cfg)
	if err != nil {
		return err
	}

	// 1. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 2. 上流フェッチ用HTTPクライアント
	var httpClient *http.Client
	if cfg.SafeFetch {
		httpClient = security.NewSSRFGuard().NewSafeClient(cfg.FetchTimeout)
	} else {
		httpClient = &http.Client{Timeout: cfg.FetchTimeout}
	}

	// 3. Webhookクライアントとスーパーバイザー
	sender := webhook.NewClient(cfg.WebhookTimeout, slog.Default())
	supervisor := monitor.NewSupervisor(len(sites), collector, slog.Default())

	// 4. シグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 5. ステータスサーバーの起動
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.StatusRateLimit))
	defer rateLimiter.Stop()

	router := status.NewRouter(&status.RouterDeps{
		Sites:       sites,
		Registry:    supervisor.Registry(),
		Gatherer:    registry,
		RateLimiter: rateLimiter,
		Logger:      slog.Default(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.StatusPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("status server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("status server listen error", slog.String("error", err.Error()))
		}
	}()

	// 6. モニターの起動
	for _, site := range sites {
		m := monitor.NewMonitor(
			site,
			httpClient,
			sender,
			supervisor.Registry(),
			supervisor.Signals(),
			collector,
			slog.Default(),
		)
		go m.Run(ctx)
	}

	slog.Info("monitoring started", slog.Int("site_count", len(sites)))

	// 7. スーパーバイザーの待機
	// すべてのモニターが配信先を失った場合はエラーで戻る
	runErr := supervisor.Run(ctx)

	slog.Info("shutting down status server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("status server shutdown failed", slog.String("error", err.Error()))
	}

	return runErr
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
