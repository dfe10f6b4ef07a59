package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/shopmon/internal/metrics"
	"github.com/hitoshi/shopmon/internal/webhook"
)

// Sender はWebhookメッセージ送信のインターフェース。
type Sender interface {
	Send(ctx context.Context, url string, msg *webhook.Message) webhook.Status
}

// delivery は1配信先・1イベント分の送信タスク。
// モニターから独立したゴルーチンとして起動され、完了を待たれない。
type delivery struct {
	sender    Sender
	registry  *Registry
	signals   chan<- Signal
	collector metrics.MetricsCollector
	logger    *slog.Logger

	// sleep はレート制限時の待機。テストで差し替える。
	sleep func(time.Duration)
}

// run は送信を1回実行し、結果に応じて再試行・登録・通知を行う。
// 待機秒数付きのレート制限以外のすべての経路で必ず終了する。
func (d *delivery) run(ctx context.Context, site string, url string, msg *webhook.Message) {
	logger := d.logger.With(
		slog.String("delivery_id", uuid.New().String()),
		slog.String("site", site),
	)

	for {
		status := d.sender.Send(ctx, url, msg)

		switch status.Kind {
		case webhook.StatusSuccess:
			d.collector.RecordDelivery("success")
			logger.Debug("Webhookを配信しました")
			return

		case webhook.StatusRateLimit:
			if status.RetryAfter == nil {
				// 待機秒数なしのレート制限は再試行せず打ち切る。
				// 次のティックでの再検出に委ねる。
				d.collector.RecordRateLimitNoRetry()
				d.collector.RecordDelivery("rate_limit")
				logger.Warn("待機秒数なしのレート制限により配信を打ち切りました")
				return
			}
			wait := time.Duration(*status.RetryAfter * float64(time.Second))
			logger.Warn("レート制限により待機します",
				slog.Float64("retry_after", *status.RetryAfter),
			)
			d.sleep(wait)

		case webhook.StatusInvalid:
			d.collector.RecordDelivery("invalid")
			if d.registry.Add(url) {
				d.collector.RecordInvalidEndpoint()
				d.signals <- Signal{Kind: SignalWebhookInvalid, Site: site, URL: url}
			}
			logger.Warn("無効なWebhookエンドポイントを登録しました")
			return

		case webhook.StatusUnknown:
			d.collector.RecordDelivery("unknown")
			logger.Warn("Webhook配信に失敗しました")
			return
		}
	}
}
