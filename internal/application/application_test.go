package application

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/toolforge/toolforge-go/db"
	"github.com/toolforge/toolforge-go/internal/config"
	"github.com/toolforge/toolforge-go/useragent"
)

func baseTestConfig(metadataURL string) config.Config {
	return config.Config{
		MetadataURL:    metadataURL,
		HTTPTimeout:    time.Second,
		RateLimitRPS:   0,
		RateLimitBurst: 0,
		DefaultsFile:   "/tmp/replica.my.cnf",
		LogLevel:       "debug",
	}
}

func TestNewInstallsUserAgent(t *testing.T) {
	cfg := baseTestConfig("http://127.0.0.1:0/w/api.php")
	cfg.Tool = "mycooltool"

	app := New(cfg, zaptest.NewLogger(t))

	want := useragent.Format("mycooltool", "", "")
	if got := app.Client().UserAgent(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if app.Config().Tool != "mycooltool" {
		t.Fatalf("Config accessor did not return configuration")
	}
}

func TestNewUsesConfiguredEndpoint(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"sitematrix":{"specials":[{"url":"https://www.wikidata.org","dbname":"wikidatawiki"}]}}`))
	}))
	t.Cleanup(srv.Close)

	app := New(baseTestConfig(srv.URL), zaptest.NewLogger(t))

	got, err := app.Client().DBName(context.Background(), "www.wikidata.org")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "wikidatawiki" || hits.Load() != 1 {
		t.Fatalf("unexpected result %q after %d hits", got, hits.Load())
	}
}

func TestResolveOptionsCarryDefaultsFile(t *testing.T) {
	app := New(baseTestConfig("http://127.0.0.1:0/"), zaptest.NewLogger(t))

	noEnv := func(string) (string, bool) { return "", false }
	target, err := db.Resolve("enwiki", db.Web, append(app.ResolveOptions(), db.WithEnv(noEnv))...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.DefaultsFile != "/tmp/replica.my.cnf" {
		t.Fatalf("expected configured defaults file, got %q", target.DefaultsFile)
	}
}
