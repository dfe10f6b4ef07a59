// Package stores は監視設定ドキュメントをモニターが扱う形に解決する。
// 4階層の三値設定の畳み込み、カラーコードのパース、ロゴの解決、
// サイト→配信先のルーティングテーブル構築を含む。
package stores

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/shopmon/internal/config"
)

// Settings は解決済みの表示設定。三値状態は残っていない。
type Settings struct {
	Username    *string
	Avatar      *string
	Color       *int
	Sizes       bool
	Thumbnail   bool
	Image       bool
	FooterText  *string
	FooterImage *string
	Timestamp   bool

	// Minimum はこの配信先へ再入荷通知を送るために必要な
	// 在庫バリアント数の下限。
	Minimum int
}

// Destination はWebhookエンドポイント1件と解決済み設定の組。
// Nameはログ用途のみ。無効化はURLの等価比較で行われる。
type Destination struct {
	Name     string
	URL      string
	Settings Settings
}

// Site はモニター1つが担当する監視対象サイト。
// 3つの配信先リストはイベント種別ごとに分かれる。
// 解決後は不変として扱われるが、モニターは無効と判定した配信先を
// 自身のリストから取り除くことがある。
type Site struct {
	Name string
	URL  string
	Logo string

	// Delay はポーリング間隔。必ず1ms以上。
	Delay time.Duration

	Restock      []*Destination
	PasswordUp   []*Destination
	PasswordDown []*Destination
}

// HasDestinations はいずれかの配信先リストが空でない場合にtrueを返す。
func (s *Site) HasDestinations() bool {
	return len(s.Restock) > 0 || len(s.PasswordUp) > 0 || len(s.PasswordDown) > 0
}

// Resolve はドキュメントから監視対象サイトのリストを構築する。
// 3つの配信先リストがすべて空のサイトは監視対象から除外される。
func Resolve(doc *config.Document, logger *slog.Logger) []*Site {
	var sites []*Site

	for _, site := range doc.Sites {
		var restock, passwordUp, passwordDown []*Destination

		for _, server := range doc.Servers {
			// 各(server, channel, store, event)チェーンは独立に
			// デフォルトから畳み込む。レベルごとに値コピーを取ることで
			// 兄弟要素間で設定が漏れない。
			serverAcc := accumulator{}
			serverAcc.apply(server.Settings)

			for _, channel := range server.Channels {
				channelAcc := serverAcc
				channelAcc.apply(channel.Settings)

				for _, store := range channel.Sites {
					if store.Name != site.Name {
						continue
					}

					storeAcc := channelAcc
					storeAcc.apply(store.Settings)

					for _, event := range store.Events {
						eventAcc := storeAcc
						eventAcc.apply(event.Settings)

						dest := &Destination{
							Name:     channel.Name,
							URL:      channel.URL,
							Settings: eventAcc.finish(logger),
						}

						// 複数のイベント種別が真の場合は複数のリストに
						// 追加される。重複排除は行わない。
						if event.Restock != nil && *event.Restock {
							restock = append(restock, dest)
						}
						if event.PasswordUp != nil && *event.PasswordUp {
							passwordUp = append(passwordUp, dest)
						}
						if event.PasswordDown != nil && *event.PasswordDown {
							passwordDown = append(passwordDown, dest)
						}
					}
				}
			}
		}

		s := &Site{
			Name:         site.Name,
			URL:          strings.TrimRight(site.URL, "/"),
			Logo:         resolveLogo(site.Name, site.Logo, logger),
			Delay:        resolveDelay(site.Delay),
			Restock:      restock,
			PasswordUp:   passwordUp,
			PasswordDown: passwordDown,
		}

		if !s.HasDestinations() {
			logger.Warn("配信先のないサイトを監視対象から除外します",
				slog.String("site", site.Name),
			)
			continue
		}

		sites = append(sites, s)
	}

	return sites
}

// resolveDelay はポーリング間隔を解決する。
// 未指定または1ms未満の値は1msに補正される。
func resolveDelay(delay *int64) time.Duration {
	if delay == nil || *delay < 1 {
		return time.Millisecond
	}
	return time.Duration(*delay) * time.Millisecond
}

// accumulator は設定チェーンの畳み込み途中の状態。
// colorは文字列のまま運び、finishで初めてパースする。
type accumulator struct {
	username    *string
	avatar      *string
	color       *string
	sizes       bool
	thumbnail   bool
	image       bool
	footerText  *string
	footerImage *string
	timestamp   bool
	minimum     int
}

// apply は1レベル分の設定ブロックを畳み込む。
// ブロック自体が明示的nullの場合は全フィールドをデフォルトへ戻す。
// ブロックが存在しない場合は何もしない。
func (a *accumulator) apply(block config.Tri[config.RawSettings]) {
	if block.IsNull() {
		*a = accumulator{}
		return
	}
	s, ok := block.Get()
	if !ok {
		return
	}

	a.username = foldString(a.username, s.Username)
	a.avatar = foldString(a.avatar, s.Avatar)
	a.color = foldString(a.color, s.Color)
	a.sizes = foldBool(a.sizes, s.Sizes)
	a.thumbnail = foldBool(a.thumbnail, s.Thumbnail)
	a.image = foldBool(a.image, s.Image)
	a.footerText = foldString(a.footerText, s.FooterText)
	a.footerImage = foldString(a.footerImage, s.FooterImage)
	a.timestamp = foldBool(a.timestamp, s.Timestamp)
	a.minimum = foldInt(a.minimum, s.Minimum)
}

// finish はチェーン末尾で最終的なSettingsを確定する。
// ここでカラー文字列をパースし、負のminimumを0に丸める。
func (a *accumulator) finish(logger *slog.Logger) Settings {
	minimum := a.minimum
	if minimum < 0 {
		minimum = 0
	}

	return Settings{
		Username:    a.username,
		Avatar:      a.avatar,
		Color:       parseColor(a.color, logger),
		Sizes:       a.sizes,
		Thumbnail:   a.thumbnail,
		Image:       a.image,
		FooterText:  a.footerText,
		FooterImage: a.footerImage,
		Timestamp:   a.timestamp,
		Minimum:     minimum,
	}
}

func foldString(cur *string, field config.Tri[string]) *string {
	if v, ok := field.Get(); ok {
		return &v
	}
	if field.IsNull() {
		return nil
	}
	return cur
}

func foldBool(cur bool, field config.Tri[bool]) bool {
	if v, ok := field.Get(); ok {
		return v
	}
	if field.IsNull() {
		return false
	}
	return cur
}

func foldInt(cur int, field config.Tri[int]) int {
	if v, ok := field.Get(); ok {
		return v
	}
	if field.IsNull() {
		return 0
	}
	return cur
}

// parseColor はカラー文字列を24ビット整数に解決する。
// まず固定パレットと照合し、一致しなければ先頭の#を除いて
// 16進数としてパースする。0xFFFFFFを超える値や不正な文字列は
// 未指定（nil）として扱われる。
func parseColor(color *string, logger *slog.Logger) *int {
	if color == nil {
		return nil
	}

	code := strings.ToLower(*color)

	// Discordのロールカラーに準じた固定パレット
	var val int
	switch code {
	case "white":
		val = 0xffffff
	case "black":
		val = 0x000000
	case "turquoise":
		val = 0x1abc9c
	case "green":
		val = 0x2ecc71
	case "blue":
		val = 0x3498db
	case "purple", "lilac":
		val = 0x9b59b6
	case "pink", "magenta":
		val = 0xe91e63
	case "yellow":
		val = 0xf1c40f
	case "orange":
		val = 0xe67e22
	case "red":
		val = 0xe74c3c
	case "light", "lightgray", "lightgrey", "light gray", "light grey":
		val = 0x95a5a6
	case "gray", "grey", "dark", "darkgray", "darkgrey", "dark gray", "dark grey":
		val = 0x607d8b
	default:
		parsed, err := strconv.ParseUint(strings.TrimPrefix(code, "#"), 16, 32)
		if err != nil {
			logger.Debug("カラーコードが16進数ではありません", slog.String("color", *color))
			return nil
		}
		if parsed > 0xFFFFFF {
			logger.Debug("カラーコードが大きすぎます", slog.String("color", *color))
			return nil
		}
		val = int(parsed)
	}

	return &val
}
