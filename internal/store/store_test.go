package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckExists(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name      string
		setup     func(string) error
		wantExist bool
		wantError bool
	}{
		{
			name: "database exists",
			setup: func(dbPath string) error {
				f, err := os.Create(dbPath)
				if err != nil {
					return err
				}
				return f.Close()
			},
			wantExist: true,
		},
		{
			name:  "database does not exist",
			setup: func(string) error { return nil },
		},
		{
			name: "database path is directory",
			setup: func(dbPath string) error {
				return os.Mkdir(dbPath, 0755)
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testDir := filepath.Join(tmpDir, tt.name)
			if err := os.Mkdir(testDir, 0755); err != nil {
				t.Fatalf("failed to create test dir: %v", err)
			}
			dbPath := filepath.Join(testDir, DefaultDBFile)
			if err := tt.setup(dbPath); err != nil {
				t.Fatalf("setup failed: %v", err)
			}

			exists, err := CheckExists(dbPath)

			if tt.wantError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if exists != tt.wantExist {
				t.Errorf("got exists=%v, want %v", exists, tt.wantExist)
			}
		})
	}
}

func TestParseFileURL(t *testing.T) {
	tests := []struct {
		in        string
		want      string
		wantError bool
	}{
		{in: "file:local.db", want: "local.db"},
		{in: DefaultDBURL, want: DefaultDBFile},
		{in: "file:///var/lib/app.db?mode=rwc", want: "/var/lib/app.db"},
		{in: "./data/app.db", want: "./data/app.db"},
		{in: " file:x.db ", want: "x.db"},
		{in: "file:", wantError: true},
		{in: "", wantError: true},
		{in: "file::memory:", wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFileURL(tt.in)
			if tt.wantError {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStoreStateString(t *testing.T) {
	states := map[StoreState]string{
		StateMissing:       "missing",
		StateUninitialized: "uninitialized",
		StatePending:       "pending",
		StateReady:         "ready",
		StoreState(42):     "unknown",
	}
	for s, want := range states {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}
