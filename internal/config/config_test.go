package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aptosai.json")
	content := `{
		"chain": {"node_url": "http://localhost:8080"},
		"trading": {"interval_seconds": 30}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected server address: %s", cfg.Server.Address)
	}
	if cfg.Chain.NodeURL != "http://localhost:8080" {
		t.Fatalf("unexpected node url: %s", cfg.Chain.NodeURL)
	}
	if cfg.Chain.PrivateKeyEnv != "APTOS_PRIVATE_KEY" {
		t.Fatalf("unexpected key env: %s", cfg.Chain.PrivateKeyEnv)
	}
	if cfg.Journal.Driver != "memory" {
		t.Fatalf("unexpected journal driver: %s", cfg.Journal.Driver)
	}
	if cfg.Trading.Interval() != 30*time.Second {
		t.Fatalf("unexpected interval: %v", cfg.Trading.Interval())
	}
	if cfg.Trading.MinTradeInterval() != 5*time.Minute {
		t.Fatalf("unexpected min trade interval: %v", cfg.Trading.MinTradeInterval())
	}
	if cfg.Trading.MaxPriceImpactBps != 100 {
		t.Fatalf("unexpected price impact ceiling: %d", cfg.Trading.MaxPriceImpactBps)
	}
	if !filepath.IsAbs(cfg.DEX.PoolsFile) {
		t.Fatalf("pools file should be absolute, got %s", cfg.DEX.PoolsFile)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestAuthAPIKeysMergesEnv(t *testing.T) {
	t.Setenv("APTOSAI_TEST_KEYS", "k2, k3 ,")
	cfg := AuthConfig{Keys: []string{"k1", " "}, KeysEnv: "APTOSAI_TEST_KEYS"}
	keys := cfg.APIKeys()
	if len(keys) != 3 || keys[0] != "k1" || keys[1] != "k2" || keys[2] != "k3" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}
