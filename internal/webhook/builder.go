package webhook

import (
	"fmt"
	"time"

	"github.com/hitoshi/shopmon/internal/product"
	"github.com/hitoshi/shopmon/internal/stores"
)

// ProductEvent は商品イベントの種別。
type ProductEvent int

const (
	// EventNewProduct は新規掲載された商品。
	EventNewProduct ProductEvent = iota
	// EventRestock は再入荷した商品。
	EventRestock
)

// PasswordEvent はパスワードページ遷移の種別。
type PasswordEvent int

const (
	// PasswordUp はパスワードページが立ち上がったこと。
	PasswordUp PasswordEvent = iota
	// PasswordDown はパスワードページが下がったこと。
	PasswordDown
)

// SiteInfo はメッセージの作成者ブロックに使うサイト情報。
type SiteInfo struct {
	Name string
	URL  string
	Logo string
}

// paddingBlank はU+2800（点字空白）。詰め物フィールドの名前と値に使う。
// Discordの埋め込みは最下段に2フィールドが並ぶと他の行と
// 揃わないため、見かけ上空のフィールドを足して整える。
const paddingBlank = "⠀"

// timestampLayout はRFC 3339ミリ秒精度、UTCで末尾Zになる。
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// BuildProductMessage は商品イベントから通知メッセージを組み立てる。
// 表示内容は配信先ごとの解決済み設定に従う。
func BuildProductMessage(kind ProductEvent, p *product.Available, site SiteInfo, s *stores.Settings, now time.Time) *Message {
	eventValue := "Restock"
	if kind == EventNewProduct {
		eventValue = "New Product"
	}

	quantity := 3
	if s.Sizes {
		quantity = len(p.Variants) + 4
	}
	fields := make([]Field, 0, quantity)

	fields = append(fields,
		Field{Name: "Event", Value: eventValue, Inline: boolPtr(true)},
		Field{Name: "Brand", Value: p.Brand, Inline: boolPtr(true)},
		Field{Name: "Price", Value: p.Price, Inline: boolPtr(true)},
	)

	if s.Sizes {
		for _, v := range p.Variants {
			fields = append(fields, Field{
				Name:   fmt.Sprintf("Size %s", v.Name),
				Value:  fmt.Sprintf("[ATC](%s/cart/add?id=%d)", site.URL, v.ID),
				Inline: boolPtr(true),
			})
		}

		if len(fields)%3 == 2 {
			fields = append(fields, Field{
				Name:   paddingBlank,
				Value:  paddingBlank,
				Inline: boolPtr(true),
			})
		}
	}

	embed := Embed{
		Title:  strPtr(p.Name),
		URL:    strPtr(fmt.Sprintf("%s/products/%s", site.URL, p.Handle)),
		Color:  s.Color,
		Fields: fields,
		Author: &Author{
			Name:    site.Name,
			URL:     strPtr(site.URL),
			IconURL: strPtr(site.Logo),
		},
		Footer:    buildFooter(s),
		Timestamp: buildTimestamp(s, now),
	}

	if s.Image && p.Image != "" {
		embed.Image = &Image{URL: p.Image}
	}
	if s.Thumbnail && p.Image != "" {
		embed.Thumbnail = &Thumbnail{URL: p.Image}
	}

	return &Message{
		Content:   nil,
		Embeds:    []Embed{embed},
		Username:  s.Username,
		AvatarURL: s.Avatar,
	}
}

// BuildPasswordMessage はパスワードページ遷移から通知メッセージを組み立てる。
// フィールドも画像も持たない。
func BuildPasswordMessage(kind PasswordEvent, site SiteInfo, s *stores.Settings, now time.Time) *Message {
	title := "Password Page Down!"
	if kind == PasswordUp {
		title = "Password Page Up!"
	}

	embed := Embed{
		Title: strPtr(title),
		URL:   strPtr(site.URL),
		Color: s.Color,
		Author: &Author{
			Name:    site.Name,
			URL:     strPtr(site.URL),
			IconURL: strPtr(site.Logo),
		},
		Footer:    buildFooter(s),
		Timestamp: buildTimestamp(s, now),
	}

	return &Message{
		Content:   nil,
		Embeds:    []Embed{embed},
		Username:  s.Username,
		AvatarURL: s.Avatar,
	}
}

// buildFooter はフッターブロックを構築する。
// footer_textがあるかtimestampが有効な場合にのみ含まれる。
// footer_imageだけが設定されていても、どちらも無ければ
// 描画されないため出力しない。
func buildFooter(s *stores.Settings) *Footer {
	if s.FooterText == nil && !s.Timestamp {
		return nil
	}
	return &Footer{
		Text:    s.FooterText,
		IconURL: s.FooterImage,
	}
}

// buildTimestamp はtimestampが有効な場合に現在のUTC時刻を
// RFC 3339ミリ秒精度の文字列で返す。
func buildTimestamp(s *stores.Settings, now time.Time) *string {
	if !s.Timestamp {
		return nil
	}
	return strPtr(now.UTC().Format(timestampLayout))
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
