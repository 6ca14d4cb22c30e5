package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadProjectConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `user:
  id: u-9adf
  name: alice
daemon:
  socket: /run/user/1000/weft/weftd.sock
attach:
  ignore:
    - "*.log"
    - "vendor/**"
  max_file_size: 2048
trace:
  file: /tmp/weft-trace.jsonl
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	cfg, err := LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("LoadProjectConfig() error = %v", err)
	}

	if cfg.User.ID != "u-9adf" {
		t.Errorf("User.ID = %q, want %q", cfg.User.ID, "u-9adf")
	}
	if cfg.User.Name != "alice" {
		t.Errorf("User.Name = %q, want %q", cfg.User.Name, "alice")
	}
	if cfg.Daemon.Socket != "/run/user/1000/weft/weftd.sock" {
		t.Errorf("Daemon.Socket = %q, want the fixture path", cfg.Daemon.Socket)
	}
	if len(cfg.Attach.Ignore) != 2 || cfg.Attach.Ignore[0] != "*.log" || cfg.Attach.Ignore[1] != "vendor/**" {
		t.Errorf("Attach.Ignore = %v, want [*.log vendor/**]", cfg.Attach.Ignore)
	}
	if cfg.Attach.MaxFileSize != 2048 {
		t.Errorf("Attach.MaxFileSize = %d, want 2048", cfg.Attach.MaxFileSize)
	}
	if cfg.Trace.File != "/tmp/weft-trace.jsonl" {
		t.Errorf("Trace.File = %q, want %q", cfg.Trace.File, "/tmp/weft-trace.jsonl")
	}
}

func TestLoadProjectConfigNormalizesIgnore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("user:\n  id: u-1\n"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	cfg, err := LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("LoadProjectConfig() error = %v", err)
	}
	if cfg.Attach.Ignore == nil {
		t.Error("Attach.Ignore is nil, want empty slice")
	}
}

func TestLoadProjectConfigMissing(t *testing.T) {
	if _, err := LoadProjectConfig(filepath.Join(t.TempDir(), "config.yaml")); err == nil {
		t.Fatal("LoadProjectConfig() expected error for missing file")
	}
}

func TestLoadProjectConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("user: [not a mapping"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	if _, err := LoadProjectConfig(path); err == nil {
		t.Fatal("LoadProjectConfig() expected error for malformed yaml")
	}
}

func TestWriteProjectConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &ProjectConfig{
		User:   UserConfig{ID: "u-42", Name: "Zoë"},
		Daemon: DaemonConfig{URL: "ws://localhost:7999"},
		Attach: AttachConfig{Ignore: []string{"*.tmp"}, MaxFileSize: 4096},
		Trace:  TraceConfig{File: "trace.jsonl"},
	}

	if err := WriteProjectConfig(path, cfg); err != nil {
		t.Fatalf("WriteProjectConfig() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read written config: %v", err)
	}
	if !strings.HasPrefix(string(raw), "# Weft configuration\n") {
		t.Errorf("Written config missing header comment, got prefix %q", string(raw[:30]))
	}

	loaded, err := LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("LoadProjectConfig() error = %v", err)
	}
	if loaded.User.ID != cfg.User.ID || loaded.User.Name != cfg.User.Name {
		t.Errorf("Loaded user = %+v, want %+v", loaded.User, cfg.User)
	}
	if loaded.Daemon.URL != cfg.Daemon.URL {
		t.Errorf("Loaded Daemon.URL = %q, want %q", loaded.Daemon.URL, cfg.Daemon.URL)
	}
	if len(loaded.Attach.Ignore) != 1 || loaded.Attach.Ignore[0] != "*.tmp" {
		t.Errorf("Loaded Attach.Ignore = %v, want [*.tmp]", loaded.Attach.Ignore)
	}
	if loaded.Attach.MaxFileSize != 4096 {
		t.Errorf("Loaded Attach.MaxFileSize = %d, want 4096", loaded.Attach.MaxFileSize)
	}
	if loaded.Trace.File != "trace.jsonl" {
		t.Errorf("Loaded Trace.File = %q, want %q", loaded.Trace.File, "trace.jsonl")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProjectConfig
		wantErr bool
	}{
		{
			name: "minimal valid config",
			cfg:  ProjectConfig{User: UserConfig{ID: "u-1"}},
		},
		{
			name:    "missing user id",
			cfg:     ProjectConfig{User: UserConfig{Name: "alice"}},
			wantErr: true,
		},
		{
			name: "ws url accepted",
			cfg: ProjectConfig{
				User:   UserConfig{ID: "u-1"},
				Daemon: DaemonConfig{URL: "ws://localhost:7999"},
			},
		},
		{
			name: "wss url accepted",
			cfg: ProjectConfig{
				User:   UserConfig{ID: "u-1"},
				Daemon: DaemonConfig{URL: "wss://weftd.example.com"},
			},
		},
		{
			name: "http url rejected",
			cfg: ProjectConfig{
				User:   UserConfig{ID: "u-1"},
				Daemon: DaemonConfig{URL: "http://localhost:7999"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
