package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

func TestParseDocument_SitesListForm(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"sites": [{"name": "kith", "url": "https://kith.com", "logo": "kith", "delay": 3000}],
		"servers": []
	}`))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if len(doc.Sites) != 1 {
		t.Fatalf("len(Sites) = %d, want 1", len(doc.Sites))
	}
	s := doc.Sites[0]
	if s.Name != "kith" || s.URL != "https://kith.com" || s.Logo != "kith" {
		t.Errorf("Site = %+v", s)
	}
	if s.Delay == nil || *s.Delay != 3000 {
		t.Errorf("Delay = %v, want 3000", s.Delay)
	}
}

func TestParseDocument_SitesMapFormPromotesKeyToName(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"sites": {
			"undefeated": {"url": "https://undefeated.com", "logo": "undefeated"},
			"kith": {"url": "https://kith.com", "logo": "kith"}
		},
		"servers": []
	}`))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if len(doc.Sites) != 2 {
		t.Fatalf("len(Sites) = %d, want 2", len(doc.Sites))
	}
	// オブジェクト形式はキーの辞書順で取り込まれる
	if doc.Sites[0].Name != "kith" || doc.Sites[1].Name != "undefeated" {
		t.Errorf("names = %q, %q, want kith, undefeated", doc.Sites[0].Name, doc.Sites[1].Name)
	}
}

func TestParseDocument_NestedHierarchy(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"sites": [{"name": "kith", "url": "https://kith.com", "logo": "kith"}],
		"servers": [{
			"name": "main",
			"settings": {"username": "Restock Bot", "color": "blue"},
			"channels": [{
				"name": "drops",
				"url": "https://discord.com/api/webhooks/1/a",
				"settings": {"username": null},
				"sites": [{
					"name": "kith",
					"events": [{"restock": true, "settings": {"sizes": true}}]
				}]
			}]
		}]
	}`))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}

	srv := doc.Servers[0]
	st, ok := srv.Settings.Get()
	if !ok {
		t.Fatal("server.settingsが読めていない")
	}
	if v, _ := st.Username.Get(); v != "Restock Bot" {
		t.Errorf("username = %q, want Restock Bot", v)
	}

	ch := srv.Channels[0]
	chSettings, _ := ch.Settings.Get()
	if !chSettings.Username.IsNull() {
		t.Error("channel.settings.usernameは明示的nullであるべき")
	}
	if !chSettings.Color.IsAbsent() {
		t.Error("channel.settings.colorはAbsentであるべき")
	}

	ev := ch.Sites[0].Events[0]
	if ev.Restock == nil || !*ev.Restock {
		t.Error("event.restock = falseまたはnil, want true")
	}
	evSettings, _ := ev.Settings.Get()
	if v, _ := evSettings.Sizes.Get(); !v {
		t.Error("event.settings.sizes = false, want true")
	}
}

func TestParseDocument_SettingsBlockNull(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"sites": [],
		"servers": [{"name": "s", "settings": null, "channels": []}]
	}`))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if !doc.Servers[0].Settings.IsNull() {
		t.Error("settingsブロック自体のnullはNull状態になるべき")
	}
}

func TestParseDocument_EventsMapFormDiscardsKeys(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"sites": [],
		"servers": [{
			"name": "s",
			"channels": [{
				"name": "c", "url": "https://example.com/wh",
				"sites": [{
					"name": "kith",
					"events": {
						"restocks": {"restock": true},
						"passwords": {"password_up": true, "password_down": true}
					}
				}]
			}]
		}]
	}`))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	events := doc.Servers[0].Channels[0].Sites[0].Events
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
}

func TestParseDocument_ProxiesBothForms(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"sites": [], "servers": [],
		"proxies": {"dc": ["http://1.2.3.4:8080"]}
	}`))
	if err != nil {
		t.Fatalf("ParseDocument(map form): %v", err)
	}
	if len(doc.Proxies) != 1 || doc.Proxies[0].Name != "dc" || len(doc.Proxies[0].Proxies) != 1 {
		t.Errorf("Proxies = %+v", doc.Proxies)
	}

	doc, err = ParseDocument([]byte(`{
		"sites": [], "servers": [],
		"proxies": [{"name": "resi", "proxies": ["http://5.6.7.8:8080"]}]
	}`))
	if err != nil {
		t.Fatalf("ParseDocument(list form): %v", err)
	}
	if len(doc.Proxies) != 1 || doc.Proxies[0].Name != "resi" {
		t.Errorf("Proxies = %+v", doc.Proxies)
	}
}

func TestParseDocument_InvalidJSON(t *testing.T) {
	if _, err := ParseDocument([]byte(`{`)); err == nil {
		t.Error("不正なJSONはエラーになるべき")
	}
}

func TestReadDocument_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monitor.json")
	if err := os.WriteFile(path, []byte(`{"sites": [], "servers": []}`), 0o600); err != nil {
		t.Fatal(err)
	}

	doc, err := ReadDocument(path, testLogger())
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if doc == nil {
		t.Fatal("doc = nil")
	}
}

func TestReadDocument_MissingFileIsError(t *testing.T) {
	if _, err := ReadDocument(filepath.Join(t.TempDir(), "none.json"), testLogger()); err == nil {
		t.Error("存在しないファイルはエラーになるべき")
	}
}

// chdir changes into dir for the duration of the test; it stands in for
// t.Chdir, which requires Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("failed to restore working directory: %v", err)
		}
	})
}

func TestReadDocument_PrivateConfigPreferred(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	if err := os.WriteFile("config.json", []byte(`{"sites": [{"name": "public", "url": "u", "logo": "l"}], "servers": []}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile("config.private.json", []byte(`{"sites": [{"name": "private", "url": "u", "logo": "l"}], "servers": []}`), 0o600); err != nil {
		t.Fatal(err)
	}

	doc, err := ReadDocument("", testLogger())
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if doc.Sites[0].Name != "private" {
		t.Errorf("site = %q, want private (config.private.jsonが優先されるべき)", doc.Sites[0].Name)
	}
}
