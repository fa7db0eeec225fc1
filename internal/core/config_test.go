package core

import (
	"path/filepath"
	"testing"
)

func TestConfig_DatabaseURL(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.Name = "testdb"
	cfg.Database.Username = "testuser"
	cfg.Database.Password = "testpassword"
	cfg.Database.SSLMode = "disable"

	url := cfg.DatabaseURL()
	expected := "host=localhost port=5432 dbname=testdb user=testuser password=testpassword sslmode=disable"
	if url != expected {
		t.Errorf("DatabaseURL() want = %s, got = %s", expected, url)
	}
}

func TestConfig_ListenAddress(t *testing.T) {
	cfg := &Config{Hostname: "127.0.0.1"}
	cfg.GameServer.Port = 5631

	addr := cfg.ListenAddress()
	expected := "127.0.0.1:5631"
	if addr != expected {
		t.Errorf("ListenAddress() want = %s, got = %s", expected, addr)
	}
}

func TestConfig_QualifiedPath(t *testing.T) {
	cfg := &Config{configDir: "/etc/triviad"}

	path := cfg.QualifiedPath("triviad.db")
	expected := filepath.Join("/etc/triviad", "triviad.db")
	if path != expected {
		t.Errorf("QualifiedPath() want = %s, got = %s", expected, path)
	}
}
