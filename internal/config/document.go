package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// Document は監視設定ドキュメント全体を表す。
// sitesが監視対象のストア、serversがDiscordサーバーごとの通知先、
// proxiesは将来の拡張用で現在モニターは参照しない。
type Document struct {
	Sites   SiteList   `json:"sites"`
	Servers ServerList `json:"servers"`
	Proxies ProxyLists `json:"proxies,omitempty"`
}

// Site は監視対象のストア1件の設定を表す。
type Site struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Logo string `json:"logo"`

	// Delay はポーリング間隔（ミリ秒）。省略時および0以下は1msに補正される。
	Delay *int64 `json:"delay,omitempty"`
}

// Server はDiscordサーバー1件の設定を表す。
// 設定はServer → Channel → Store → Eventの4階層で継承される。
type Server struct {
	Name     string           `json:"name"`
	Settings Tri[RawSettings] `json:"settings,omitzero"`
	Channels ChannelList      `json:"channels"`
}

// Channel はWebhookエンドポイント1件の設定を表す。
type Channel struct {
	Name     string           `json:"name"`
	URL      string           `json:"url"`
	Settings Tri[RawSettings] `json:"settings,omitzero"`
	Sites    StoreList        `json:"sites"`
}

// Store はチャンネル内でのサイトへの紐付けを表す。
// nameがDocument.Sitesのいずれかのサイト名と一致した場合のみ有効。
type Store struct {
	Name     string           `json:"name"`
	Settings Tri[RawSettings] `json:"settings,omitzero"`
	Events   EventList        `json:"events"`
}

// Event は通知対象のイベント種別の選択を表す。
// 3つの真偽値のうちtrueのものに対応する配信リストへ通知先が追加される。
type Event struct {
	Settings     Tri[RawSettings] `json:"settings,omitzero"`
	Restock      *bool            `json:"restock,omitempty"`
	PasswordUp   *bool            `json:"password_up,omitempty"`
	PasswordDown *bool            `json:"password_down,omitempty"`
}

// RawSettings は解決前の三値状態付き表示設定を表す。
// 各フィールドはAbsent（継承）/ Null（デフォルトへ戻す）/ Value（上書き）
// のいずれかを取る。colorは文字列のまま保持し、解決チェーンの最後で
// パースされる。
type RawSettings struct {
	Username    Tri[string] `json:"username,omitzero"`
	Avatar      Tri[string] `json:"avatar,omitzero"`
	Color       Tri[string] `json:"color,omitzero"`
	Sizes       Tri[bool]   `json:"sizes,omitzero"`
	Thumbnail   Tri[bool]   `json:"thumbnail,omitzero"`
	Image       Tri[bool]   `json:"image,omitzero"`
	FooterText  Tri[string] `json:"footer_text,omitzero"`
	FooterImage Tri[string] `json:"footer_image,omitzero"`
	Timestamp   Tri[bool]   `json:"timestamp,omitzero"`
	Minimum     Tri[int]    `json:"minimum,omitzero"`
}

// --- list-or-map デュアルエンコーディング ---

// ドキュメント内の名前付きコレクションはすべて、配列とオブジェクトの
// 両方の形を受け付ける。オブジェクト形式ではキーが各要素のnameになる
// （イベントのキーは捨てられる）。下流のロジックは常に順序付きの
// スライスだけを見る。オブジェクトのキー順は不定なため、決定性のため
// キーの辞書順に整列して取り込む。

type named interface {
	setName(name string)
}

func (s *Site) setName(name string)    { s.Name = name }
func (s *Server) setName(name string)  { s.Name = name }
func (c *Channel) setName(name string) { c.Name = name }
func (s *Store) setName(name string)   { s.Name = name }

// unmarshalListOrMap は配列形式とオブジェクト形式の両方を試す。
func unmarshalListOrMap[T any, PT interface {
	*T
	named
}](data []byte) ([]T, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var m map[string]T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]T, 0, len(m))
	for _, k := range keys {
		item := m[k]
		PT(&item).setName(k)
		items = append(items, item)
	}
	return items, nil
}

// SiteList はSiteのlist-or-mapコレクション。
type SiteList []Site

func (l *SiteList) UnmarshalJSON(data []byte) error {
	items, err := unmarshalListOrMap[Site](data)
	if err != nil {
		return err
	}
	*l = items
	return nil
}

// ServerList はServerのlist-or-mapコレクション。
type ServerList []Server

func (l *ServerList) UnmarshalJSON(data []byte) error {
	items, err := unmarshalListOrMap[Server](data)
	if err != nil {
		return err
	}
	*l = items
	return nil
}

// ChannelList はChannelのlist-or-mapコレクション。
type ChannelList []Channel

func (l *ChannelList) UnmarshalJSON(data []byte) error {
	items, err := unmarshalListOrMap[Channel](data)
	if err != nil {
		return err
	}
	*l = items
	return nil
}

// StoreList はStoreのlist-or-mapコレクション。
type StoreList []Store

func (l *StoreList) UnmarshalJSON(data []byte) error {
	items, err := unmarshalListOrMap[Store](data)
	if err != nil {
		return err
	}
	*l = items
	return nil
}

// EventList はEventのlist-or-mapコレクション。
// イベントには名前が無いため、オブジェクト形式のキーは捨てられる。
type EventList []Event

func (l *EventList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []Event
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}

	var m map[string]Event
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]Event, 0, len(m))
	for _, k := range keys {
		items = append(items, m[k])
	}
	*l = items
	return nil
}

// ProxyList は名前付きのプロキシURLリスト。
type ProxyList struct {
	Name    string     `json:"name"`
	Proxies StringList `json:"proxies"`
}

func (p *ProxyList) setName(name string) { p.Name = name }

// ProxyLists はProxyListのlist-or-mapコレクション。
// オブジェクト形式ではキーがリスト名、値がプロキシの配列になる。
type ProxyLists []ProxyList

func (l *ProxyLists) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []ProxyList
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}

	var m map[string]StringList
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]ProxyList, 0, len(m))
	for _, k := range keys {
		items = append(items, ProxyList{Name: k, Proxies: m[k]})
	}
	*l = items
	return nil
}

// StringList は文字列のlist-or-mapコレクション。
// オブジェクト形式では値だけをキーの辞書順で取り込む。
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]string, 0, len(m))
	for _, k := range keys {
		items = append(items, m[k])
	}
	*l = items
	return nil
}

// --- ドキュメントの読み込み ---

// defaultDocumentPaths は優先順のデフォルト探索パス。
// config.private.jsonは開発者が自分のWebhook URLを誤って
// コミットしないための私用ファイルで、存在すれば優先される。
var defaultDocumentPaths = []string{"config.private.json", "config.json"}

// ParseDocument はJSONバイト列からDocumentをデコードする。
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("設定ドキュメントのパースに失敗しました: %w", err)
	}
	return &doc, nil
}

// ReadDocument は監視設定ドキュメントをディスクから読み込む。
// pathが空の場合はconfig.private.json、次にconfig.jsonを探す。
// どのファイルも読めない場合はエラーを返す（起動時に致命的）。
func ReadDocument(path string, logger *slog.Logger) (*Document, error) {
	paths := defaultDocumentPaths
	if path != "" {
		paths = []string{path}
	}

	var lastErr error
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			lastErr = err
			continue
		}

		doc, err := ParseDocument(data)
		if err != nil {
			logger.Warn("設定ドキュメントが不正です",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
			lastErr = err
			continue
		}

		logger.Info("設定ドキュメントを読み込みました", slog.String("path", p))
		return doc, nil
	}

	return nil, fmt.Errorf("設定ドキュメントを読み込めませんでした: %w", lastErr)
}
