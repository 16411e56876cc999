package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	want := Default()
	want.DBPath = "/tmp/dashtrack.db"
	want.Backend = BackendFile
	want.DataDir = "/tmp/boards"
	want.Variant = "planner"
	want.WebPort = 9090
	want.Neo4j.Password = "secret"

	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"web_port": 3000, "neo4j": {"uri": "bolt://graph:7687"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WebPort != 3000 {
		t.Fatalf("expected port 3000, got %d", cfg.WebPort)
	}
	if cfg.Backend != BackendSQLite || cfg.KeyPrefix != "DASH" {
		t.Fatalf("expected defaults to survive, got %+v", cfg)
	}
	if cfg.Neo4j.URI != "bolt://graph:7687" || cfg.Neo4j.Username != "neo4j" {
		t.Fatalf("unexpected neo4j config: %+v", cfg.Neo4j)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"backend": "file", "web_port": 3000}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DASHTRACK_BACKEND", "memory")
	t.Setenv("DASHTRACK_NEO4J_DATABASE", "boards")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendMemory {
		t.Fatalf("expected env backend, got %q", cfg.Backend)
	}
	if cfg.WebPort != 3000 {
		t.Fatalf("expected file port, got %d", cfg.WebPort)
	}
	if cfg.Neo4j.Database != "boards" {
		t.Fatalf("expected env neo4j database, got %q", cfg.Neo4j.Database)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	cfg.Backend = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown backend error")
	}
	cfg = Default()
	cfg.WebPort = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected invalid port error")
	}
	cfg = Default()
	cfg.Variant = "scrum"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown variant error")
	}
}
