package monitor

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/shopmon/internal/metrics"
	"github.com/hitoshi/shopmon/internal/product"
	"github.com/hitoshi/shopmon/internal/stores"
	"github.com/hitoshi/shopmon/internal/webhook"
)

// Monitor は1サイトの商品フィードを定期的にポーリングし、
// 差分からイベントを検出してWebhook配信を起動する。
// 状態はすべてモニター自身のゴルーチンからのみ触れる。
type Monitor struct {
	site       *stores.Site
	httpClient *http.Client
	sender     Sender
	registry   *Registry
	signals    chan<- Signal
	collector  metrics.MetricsCollector
	logger     *slog.Logger

	// previous は前回の正常ポーリングのスナップショット。
	// hasPreviousがfalseの間は差分検出を行わない。
	previous    []product.Minimal
	hasPrevious bool

	// passwordPage は直近の正常ポーリングがパスワードページだったか。
	passwordPage bool
	// rateLimited は商品フィード取得のレート制限のエッジ検出用。
	// Webhook側のレート制限とは無関係。
	rateLimited bool
	// online は直近の試行でサイトに到達できたか。
	online bool
	// seenInvalid は無効エンドポイントレジストリの確認済み位置。
	seenInvalid int

	now   func() time.Time
	sleep func(time.Duration)
}

// NewMonitor はMonitorの新しいインスタンスを生成する。
func NewMonitor(
	site *stores.Site,
	httpClient *http.Client,
	sender Sender,
	registry *Registry,
	signals chan<- Signal,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Monitor {
	return &Monitor{
		site:       site,
		httpClient: httpClient,
		sender:     sender,
		registry:   registry,
		signals:    signals,
		collector:  collector,
		logger:     logger.With(slog.String("site", site.Name)),
		online:     true,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// Run は設定された間隔でティックを繰り返す。
// 配信先がなくなるかコンテキストがキャンセルされるまで継続する。
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.site.Delay)
	defer ticker.Stop()

	m.logger.Info("監視を開始しました",
		slog.String("url", m.site.URL),
		slog.Duration("delay", m.site.Delay),
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("監視を停止しました")
			return
		case <-ticker.C:
			if !m.tick(ctx) {
				m.logger.Info("配信先がなくなったため監視を終了します")
				m.signals <- Signal{Kind: SignalSiteStopped, Site: m.site.Name}
				return
			}
		}
	}
}

// tick は1回分の監視サイクルを実行する。
// 続行する場合はtrue、モニターを終了すべき場合はfalseを返す。
func (m *Monitor) tick(ctx context.Context) bool {
	m.prune()
	if !m.site.HasDestinations() {
		return false
	}

	resp, err := m.fetch(ctx)
	if err != nil {
		m.collector.RecordUpstreamFailure(m.site.Name)
		if m.online {
			m.online = false
			m.logger.Warn("サイトに到達できません", slog.String("error", err.Error()))
			m.signals <- Signal{Kind: SignalSiteOffline, Site: m.site.Name}
		}
		return true
	}
	defer resp.Body.Close()

	if !m.online {
		m.online = true
		m.logger.Info("サイトへの到達が回復しました")
		m.signals <- Signal{Kind: SignalSiteOnline, Site: m.site.Name}
	}
	m.collector.RecordUpstreamStatus(m.site.Name, resp.StatusCode)

	switch resp.StatusCode {
	case http.StatusOK:
		m.handleFeed(ctx, resp.Body)
	case http.StatusUnauthorized:
		if !m.passwordPage {
			m.passwordPage = true
			m.emitPassword(ctx, webhook.PasswordUp)
		}
	case http.StatusTooManyRequests:
		if !m.rateLimited {
			m.rateLimited = true
			m.logger.Warn("商品フィードの取得がレート制限されています")
		}
	}
	return true
}

// prune は無効エンドポイントレジストリの未確認分を読み、
// 該当する配信先をすべてのイベントリストから取り除く。
func (m *Monitor) prune() {
	added, next := m.registry.Since(m.seenInvalid)
	m.seenInvalid = next
	for _, url := range added {
		m.site.Restock = removeDestination(m.site.Restock, url)
		m.site.PasswordUp = removeDestination(m.site.PasswordUp, url)
		m.site.PasswordDown = removeDestination(m.site.PasswordDown, url)
	}
}

// fetch は商品フィードを取得する。
// ヘッダーは通常のブラウザ由来のリクエストを模倣する固定セット。
func (m *Monitor) fetch(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.site.URL+"/products.json", nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/86.0.4240.198 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.9")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-User", "?1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	return m.httpClient.Do(req)
}

// handleFeed は200応答のボディを処理する。
// デコードに失敗した場合はスナップショットを更新せず、イベントも出さない。
func (m *Monitor) handleFeed(ctx context.Context, body io.Reader) {
	if m.passwordPage {
		m.passwordPage = false
		m.emitPassword(ctx, webhook.PasswordDown)
	}
	m.rateLimited = false

	data, err := io.ReadAll(body)
	if err != nil {
		m.collector.RecordDecodeFailure(m.site.Name)
		m.logger.Debug("商品フィードの読み取りに失敗しました", slog.String("error", err.Error()))
		return
	}
	feed, err := product.DecodeFeed(data)
	if err != nil {
		m.collector.RecordDecodeFailure(m.site.Name)
		m.logger.Debug("商品フィードのデコードに失敗しました", slog.String("error", err.Error()))
		return
	}

	minimal := product.ToMinimal(feed)
	if m.hasPrevious {
		m.diff(ctx, feed, minimal)
	}
	m.previous = minimal
	m.hasPrevious = true
}

// diff は前回スナップショットと現在のフィードを比較し、
// 商品ごとに再入荷または新規掲載のイベントを出す。
// フィードから消えた商品はイベントにならない。
func (m *Monitor) diff(ctx context.Context, feed *product.Feed, minimal []product.Minimal) {
	prev := make(map[uint64]*product.Minimal, len(m.previous))
	for i := range m.previous {
		prev[m.previous[i].ID] = &m.previous[i]
	}

	for i := range feed.Products {
		curr := &minimal[i]
		before, ok := prev[curr.ID]
		if !ok {
			m.emitProduct(ctx, webhook.EventNewProduct, &feed.Products[i])
			continue
		}
		if curr.UpdatedAt != before.UpdatedAt && hasRestock(curr, before) {
			m.emitProduct(ctx, webhook.EventRestock, &feed.Products[i])
		}
	}
}

// hasRestock は前回在庫切れだったバリアントが現在在庫ありに
// 転じているかを、バリアントIDの一致で判定する。
func hasRestock(curr, prev *product.Minimal) bool {
	for _, v := range curr.Variants {
		if !v.Available {
			continue
		}
		for _, w := range prev.Variants {
			if w.ID == v.ID && !w.Available {
				return true
			}
		}
	}
	return false
}

// emitProduct は商品イベントを再入荷リストの全配信先へ展開する。
// 表示用の形はイベントごとに1回だけ構築し、配信間で共有する。
// 再入荷は配信先ごとの在庫下限でフィルタされる。
func (m *Monitor) emitProduct(ctx context.Context, kind webhook.ProductEvent, p *product.Product) {
	ap := product.ToAvailable(p)

	kindLabel := "restock"
	if kind == webhook.EventNewProduct {
		kindLabel = "new_product"
	}
	m.collector.RecordEvent(m.site.Name, kindLabel)
	m.logger.Info("商品イベントを検出しました",
		slog.String("kind", kindLabel),
		slog.String("title", ap.Name),
		slog.String("handle", ap.Handle),
	)

	info := m.siteInfo()
	for _, dest := range m.site.Restock {
		if kind == webhook.EventRestock && len(ap.Variants) < dest.Settings.Minimum {
			continue
		}
		msg := webhook.BuildProductMessage(kind, ap, info, &dest.Settings, m.now())
		d := m.newDelivery()
		go d.run(ctx, m.site.Name, dest.URL, msg)
	}
}

// emitPassword はパスワードページ遷移イベントを対応する
// リストの全配信先へ展開する。
func (m *Monitor) emitPassword(ctx context.Context, kind webhook.PasswordEvent) {
	destinations := m.site.PasswordDown
	kindLabel := "password_down"
	if kind == webhook.PasswordUp {
		destinations = m.site.PasswordUp
		kindLabel = "password_up"
	}
	m.collector.RecordEvent(m.site.Name, kindLabel)
	m.logger.Info("パスワードページの遷移を検出しました", slog.String("kind", kindLabel))

	info := m.siteInfo()
	for _, dest := range destinations {
		msg := webhook.BuildPasswordMessage(kind, info, &dest.Settings, m.now())
		d := m.newDelivery()
		go d.run(ctx, m.site.Name, dest.URL, msg)
	}
}

func (m *Monitor) siteInfo() webhook.SiteInfo {
	return webhook.SiteInfo{
		Name: m.site.Name,
		URL:  m.site.URL,
		Logo: m.site.Logo,
	}
}

func (m *Monitor) newDelivery() *delivery {
	return &delivery{
		sender:    m.sender,
		registry:  m.registry,
		signals:   m.signals,
		collector: m.collector,
		logger:    m.logger,
		sleep:     m.sleep,
	}
}

// removeDestination はURLが一致する配信先をリストから取り除く。
func removeDestination(list []*stores.Destination, url string) []*stores.Destination {
	kept := list[:0]
	for _, d := range list {
		if d.URL != url {
			kept = append(kept, d)
		}
	}
	return kept
}
