package stores

import (
	"log/slog"
	"strings"
	"unicode"
)

// defaultLogo は未知のストア名に使われるShopifyロゴのURL。
const defaultLogo = "https://raw.githubusercontent.com/subreme/shopify-monitor/main/logos/shopify.png"

// knownLogos はストア名→ロゴURLの対応表。
// キーは小文字・空白除去後の形。
var knownLogos = map[string]string{
	"shopify": defaultLogo,

	"afew":            "https://raw.githubusercontent.com/subreme/shopify-monitor/main/logos/afew.jpg",
	"asphaltgold":     "https://raw.githubusercontent.com/subreme/shopify-monitor/main/logos/asphaltgold.jpg",
	"atmos":           "https://raw.githubusercontent.com/subreme/atmos-monitor/main/logos/atmos.jpg",
	"bodega":          "https://raw.githubusercontent.com/subreme/shopify-monitor/main/logos/bodega.png",
	"concepts":        "https://raw.githubusercontent.com/subreme/concepts-monitor/main/logos/concepts.jpg",
	"extrabutter":     "https://raw.githubusercontent.com/subreme/extrabutter-monitor/main/logos/extrabutter.jpg",
	"hanon":           "https://raw.githubusercontent.com/subreme/hanon-monitor/main/logos/hanon.jpg",
	"jimmyjazz":       "https://raw.githubusercontent.com/subreme/shopify-monitor/main/logos/jimmyjazz.jpg",
	"kith":            "https://raw.githubusercontent.com/subreme/shopify-monitor/main/logos/kith.jpg",
	"notre":           "https://raw.githubusercontent.com/subreme/shopify-monitor/main/logos/notre.jpg",
	"packer":          "https://raw.githubusercontent.com/subreme/shopify-monitor/main/logos/packer.jpg",
	"shoepalace":      "https://raw.githubusercontent.com/subreme/shopify-monitor/main/logos/shoepalace.jpg",
	"sneakerpolitics": "https://raw.githubusercontent.com/subreme/shopify-monitor/main/logos/sneakerpolitics.jpg",
	"travisscott":     "https://raw.githubusercontent.com/subreme/shopify-monitor/main/logos/travisscott.jpg",
	"cactusjack":      "https://raw.githubusercontent.com/subreme/shopify-monitor/main/logos/travisscott.jpg",
	"undefeated":      "https://raw.githubusercontent.com/subreme/shopify-monitor/main/logos/undefeated.jpg",
	"westnyc":         "https://raw.githubusercontent.com/subreme/shopify-monitor/main/logos/westnyc.jpg",
}

// resolveLogo はサイトのロゴ設定をURLに解決する。
// "://"を含む場合はそのまま使用し、それ以外は小文字化・空白除去の上で
// 既知のストア名として対応表を引く。未知の場合は警告を出して
// Shopifyロゴへフォールバックする。
func resolveLogo(siteName, logo string, logger *slog.Logger) string {
	if strings.Contains(logo, "://") {
		return logo
	}

	key := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.ToLower(logo))

	if url, ok := knownLogos[key]; ok {
		return url
	}

	logger.Warn("ロゴを解決できませんでした。Shopifyロゴを使用します",
		slog.String("site", siteName),
		slog.String("logo", logo),
	)
	return defaultLogo
}
