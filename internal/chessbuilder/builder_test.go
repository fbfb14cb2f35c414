package chessbuilder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/park285/Cheese-Chess-Server/internal/config"
	"github.com/park285/Cheese-Chess-Server/internal/store"
)

func testConfig() *config.AppConfig {
	cfg := config.Defaults()
	cfg.BcryptCost = 4
	cfg.LogFile = false
	return cfg
}

func TestNewMemory(t *testing.T) {
	deps, err := New(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer deps.Close()
	if _, ok := deps.Store.(*store.Memory); !ok {
		t.Fatalf("store = %T", deps.Store)
	}

	srv := httptest.NewServer(deps.Handler)
	defer srv.Close()
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/db", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("DELETE /db = %d", resp.StatusCode)
	}
}

func TestNewRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg := testConfig()
	cfg.StoreBackend = config.BackendRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"
	deps, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer deps.Close()
	if _, ok := deps.Store.(*store.Redis); !ok {
		t.Fatalf("store = %T", deps.Store)
	}
	if _, err := deps.Auth.Register(context.Background(), "alice", "pw", "a@x"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !mr.Exists("chess:user:alice") {
		t.Fatalf("expected user key in redis, keys=%v", mr.Keys())
	}
}

func TestNewRejectsBadInputs(t *testing.T) {
	if _, err := New(context.Background(), nil, nil); err == nil {
		t.Fatalf("nil config must fail")
	}
	cfg := testConfig()
	cfg.StoreBackend = "mongo"
	if _, err := New(context.Background(), cfg, nil); err == nil || !strings.Contains(err.Error(), "mongo") {
		t.Fatalf("err = %v", err)
	}
	cfg = testConfig()
	cfg.MessagesDir = "/nonexistent/messages"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("missing messages dir must fail")
	}
}
