package monitor

// SignalKind はスーパーバイザーへ送る信号の種別。
type SignalKind int

const (
	// SignalSiteOnline はサイトへの到達が回復したこと。
	SignalSiteOnline SignalKind = iota
	// SignalSiteOffline はサイトへ到達できなくなったこと。
	SignalSiteOffline
	// SignalWebhookInvalid はWebhookエンドポイントが無効と判定されたこと。
	SignalWebhookInvalid
	// SignalSiteStopped は配信先を失ったモニターが自己終了したこと。
	SignalSiteStopped
	// SignalQuit はスーパーバイザーに監視全体の終了を求めること。
	SignalQuit
)

// Signal はモニターと配信タスクからスーパーバイザーへの通知。
// 種別に応じてSite、URL、Reasonのいずれかが設定される。
type Signal struct {
	Kind   SignalKind
	Site   string
	URL    string
	Reason string
}

// String はログ出力用の表記。
func (k SignalKind) String() string {
	switch k {
	case SignalSiteOnline:
		return "site_online"
	case SignalSiteOffline:
		return "site_offline"
	case SignalWebhookInvalid:
		return "webhook_invalid"
	case SignalSiteStopped:
		return "site_stopped"
	case SignalQuit:
		return "quit"
	default:
		return "unknown"
	}
}
