// Package product はShopifyストアのproducts.jsonフィードのモデルと、
// 差分検出・通知生成のための2つの縮約形を提供する。
package product

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Feed はproducts.jsonのトップレベル構造を表す。
// 認識しないフィールドは無視される。
type Feed struct {
	Products []Product `json:"products"`
}

// Product はフィード内の商品1件を表す。
type Product struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Handle    string    `json:"handle"`
	UpdatedAt string    `json:"updated_at"`
	Vendor    string    `json:"vendor"`
	Variants  []Variant `json:"variants"`
	Images    []Image   `json:"images"`
}

// Variant は商品のバリアント（多くの場合サイズ）を表す。
type Variant struct {
	ID        uint64 `json:"id"`
	Title     string `json:"title"`
	Available bool   `json:"available"`
	Price     string `json:"price"`
}

// Image は商品画像を表す。
type Image struct {
	Src string `json:"src"`
}

// DecodeFeed はproducts.jsonのボディをデコードする。
func DecodeFeed(data []byte) (*Feed, error) {
	var feed Feed
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("products.jsonのデコードに失敗しました: %w", err)
	}
	return &feed, nil
}

// Minimal は差分検出のためにポーリング間で保持する最小形。
// IDと更新時刻とバリアントの在庫フラグだけを持つことで、
// スナップショットをデータベースに保存せずメモリに置ける。
type Minimal struct {
	ID        uint64
	UpdatedAt string
	Variants  []MinimalVariant
}

// MinimalVariant はバリアントの最小形。
type MinimalVariant struct {
	ID        uint64
	Available bool
}

// ToMinimal はフィードを最小形のスナップショットに変換する。
// 商品とバリアントの出現順を保存する。
func ToMinimal(feed *Feed) []Minimal {
	products := make([]Minimal, 0, len(feed.Products))
	for _, p := range feed.Products {
		variants := make([]MinimalVariant, 0, len(p.Variants))
		for _, v := range p.Variants {
			variants = append(variants, MinimalVariant{
				ID:        v.ID,
				Available: v.Available,
			})
		}
		products = append(products, Minimal{
			ID:        p.ID,
			UpdatedAt: p.UpdatedAt,
			Variants:  variants,
		})
	}
	return products
}

// Available はWebhookの埋め込みを構成するための表示用の形。
// イベントごとに1回だけ構築し、同一イベントの並行配信間で共有される。
type Available struct {
	Name   string
	Handle string
	Brand  string
	Price  string
	Image  string

	// Variants は在庫のあるバリアントのみを含む。
	Variants []AvailableVariant
}

// AvailableVariant は在庫のあるバリアントの表示用の形。
type AvailableVariant struct {
	Name string
	ID   uint64
}

// ToAvailable は商品を表示用の形に変換する。
// 価格は先頭バリアントのもの、無ければ"?"。画像は先頭のもの。
// バリアント名は正規化される（normalizeVariantName参照）。
func ToAvailable(p *Product) *Available {
	// 埋め込みのフィールド値は1文字以上必要なため"?"をデフォルトにする
	price := "?"
	if len(p.Variants) > 0 {
		price = p.Variants[0].Price
	}

	var image string
	if len(p.Images) > 0 {
		image = p.Images[0].Src
	}

	var variants []AvailableVariant
	for _, v := range p.Variants {
		if !v.Available {
			continue
		}
		variants = append(variants, AvailableVariant{
			Name: normalizeVariantName(v.Title),
			ID:   v.ID,
		})
	}

	return &Available{
		Name:     p.Title,
		Handle:   p.Handle,
		Brand:    p.Vendor,
		Price:    price,
		Image:    image,
		Variants: variants,
	}
}

// normalizeVariantName はバリアント名を正規化する。
// 一部のストアはサイズ名に"- / "のような接頭辞を付けるため、
// 英数字・空白・ASCIIドット以外の文字をすべて除去してから
// 前後の空白を取り除く。
func normalizeVariantName(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) || r == '.' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
