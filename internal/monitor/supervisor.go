package monitor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/shopmon/internal/metrics"
)

// signalBufferPerSite は信号チャネルの容量係数。
// モニターと配信タスクの通知が集中しても詰まらない程度に取る。
const signalBufferPerSite = 5

// Supervisor はモニター群の共有資源と信号を集約する。
// 無効エンドポイントレジストリと信号チャネルを所有し、
// 稼働中のモニター数とオフラインサイト数を追跡する。
type Supervisor struct {
	registry  *Registry
	signals   chan Signal
	collector metrics.MetricsCollector
	logger    *slog.Logger

	totalSites int
	delivering int
	offline    int
}

// NewSupervisor はサイト数に応じた容量の信号チャネルを持つ
// Supervisorを生成する。
func NewSupervisor(totalSites int, collector metrics.MetricsCollector, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		registry:   NewRegistry(),
		signals:    make(chan Signal, signalBufferPerSite*totalSites),
		collector:  collector,
		logger:     logger,
		totalSites: totalSites,
		delivering: totalSites,
	}
}

// Registry は共有の無効エンドポイントレジストリを返す。
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Signals はモニター構築時に渡す信号チャネルを返す。
func (s *Supervisor) Signals() chan Signal {
	return s.signals
}

// Run は信号を消費し続ける。
// すべてのモニターが自己終了した場合はエラーを返して
// プロセス全体の終了を求める。コンテキストのキャンセルでは
// nilを返す。
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("スーパーバイザーを停止しました")
			return nil
		case sig := <-s.signals:
			if err := s.handle(sig); err != nil {
				return err
			}
		}
	}
}

// handle は信号1件を処理する。
// 監視全体を終了すべき場合はエラーを返す。
func (s *Supervisor) handle(sig Signal) error {
	switch sig.Kind {
	case SignalSiteOffline:
		s.offline++
		s.collector.SetOfflineSites(s.offline)
		if s.offline == s.totalSites {
			s.logger.Error("すべてのサイトに到達できません。ネットワーク接続を確認してください")
		}

	case SignalSiteOnline:
		// 初回回復時に信号が重複しても負数にはしない
		if s.offline > 0 {
			s.offline--
			s.collector.SetOfflineSites(s.offline)
			if s.offline == 0 {
				s.logger.Info("ネットワーク接続が回復しました")
			}
		}

	case SignalWebhookInvalid:
		s.logger.Warn("無効なWebhookエンドポイントが報告されました",
			slog.String("site", sig.Site),
			slog.String("url", sig.URL),
		)

	case SignalSiteStopped:
		s.delivering--
		s.logger.Info("モニターが終了しました",
			slog.String("site", sig.Site),
			slog.Int("remaining", s.delivering),
		)
		if s.delivering <= 0 {
			return errors.New("No valid webhooks!")
		}

	case SignalQuit:
		return errors.New(sig.Reason)
	}
	return nil
}
