// Package webhook はDiscord互換の受信Webhookへの通知を提供する。
// ワイヤ形式のメッセージモデル、イベントからの組み立て、
// 送信結果の分類を含む。
package webhook

// Message はWebhookへPOSTされるペイロード全体。
// contentは常にnullとして出力される（埋め込みのみを使うため）。
type Message struct {
	Content   *string `json:"content"`
	Embeds    []Embed `json:"embeds"`
	Username  *string `json:"username,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Embed は通知の本体。1メッセージにつき必ず1つ生成される。
// colorだけは未指定時にnullとして出力される（Discordの仕様上、
// フィールド省略とnullで描画が変わらないため明示している）。
type Embed struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	URL         *string    `json:"url,omitempty"`
	Color       *int       `json:"color"`
	Fields      []Field    `json:"fields,omitempty"`
	Author      *Author    `json:"author,omitempty"`
	Footer      *Footer    `json:"footer,omitempty"`
	Timestamp   *string    `json:"timestamp,omitempty"`
	Image       *Image     `json:"image,omitempty"`
	Thumbnail   *Thumbnail `json:"thumbnail,omitempty"`
}

// Field は埋め込み内の名前付きフィールド。
// nameとvalueはAPI上必須。
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline *bool  `json:"inline,omitempty"`
}

// Author は埋め込みの作成者ブロック。nameが無いと描画されない。
type Author struct {
	Name    string  `json:"name"`
	URL     *string `json:"url,omitempty"`
	IconURL *string `json:"icon_url,omitempty"`
}

// Footer は埋め込みのフッター。
// textが無くてもtimestampがあればicon_urlは描画される。
type Footer struct {
	Text    *string `json:"text,omitempty"`
	IconURL *string `json:"icon_url,omitempty"`
}

// Image は埋め込みの大きい画像。
type Image struct {
	URL string `json:"url"`
}

// Thumbnail は埋め込みのサムネイル画像。
type Thumbnail struct {
	URL string `json:"url"`
}
