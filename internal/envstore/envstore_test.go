package envstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return &Store{Path: filepath.Join(t.TempDir(), ".bashrc")}
}

func countLines(t *testing.T, path, substr string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read profile: %v", err)
	}
	count := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, substr) {
			count++
		}
	}
	return count
}

func TestSet_CreatesFileOnFirstWrite(t *testing.T) {
	store := newStore(t)

	if err := store.Set("SURVON_HOME", "/home/survon"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, ok, err := store.Get("SURVON_HOME")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || value != "/home/survon" {
		t.Errorf("Get() = (%q, %v), want (/home/survon, true)", value, ok)
	}
}

func TestSet_SecondWriteWins(t *testing.T) {
	store := newStore(t)

	if err := store.Set("SURVON_MODEL", "/models/phi3.gguf"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("SURVON_MODEL", "/models/custom.gguf"); err != nil {
		t.Fatal(err)
	}

	if got := countLines(t, store.Path, "SURVON_MODEL"); got != 1 {
		t.Errorf("profile defines SURVON_MODEL on %d lines, want exactly 1", got)
	}

	value, _, err := store.Get("SURVON_MODEL")
	if err != nil {
		t.Fatal(err)
	}
	if value != "/models/custom.gguf" {
		t.Errorf("value = %q, want the second write's value", value)
	}
}

func TestSet_DoesNotTouchUnrelatedLines(t *testing.T) {
	store := newStore(t)
	unrelated := "alias ll='ls -la'\nexport PATH=\"$PATH:/opt/bin\"\n"
	if err := os.WriteFile(store.Path, []byte(unrelated), 0644); err != nil {
		t.Fatal(err)
	}

	if err := store.Set("SURVON_HOME", "/home/survon"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(store.Path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"alias ll=", "/opt/bin"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("profile lost unrelated line containing %q:\n%s", want, data)
		}
	}
}

func TestSet_KeyPrefixDoesNotCollide(t *testing.T) {
	store := newStore(t)

	if err := store.Set("SURVON_HOME", "/home/survon"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("SURVON_HOME_BACKUP", "/mnt/backup"); err != nil {
		t.Fatal(err)
	}
	// Rewriting the shorter key must not clobber the longer one.
	if err := store.Set("SURVON_HOME", "/home/survon2"); err != nil {
		t.Fatal(err)
	}

	got, err := store.All()
	if err != nil {
		t.Fatal(err)
	}
	want := []Entry{
		{Key: "SURVON_HOME_BACKUP", Value: "/mnt/backup"},
		{Key: "SURVON_HOME", Value: "/home/survon2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("All() mismatch (-want +got):\n%s", diff)
	}
}

func TestSet_EscapedValuesRoundTrip(t *testing.T) {
	store := newStore(t)

	tests := []struct {
		name  string
		value string
	}{
		{"plain", "/home/survon"},
		{"spaces", "two words"},
		{"quotes", `say "hello"`},
		{"backslashes", `C:\legacy\path`},
		{"mixed", `a "b" c\d`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Set("SURVON_TEST", tt.value); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, ok, err := store.Get("SURVON_TEST")
			if err != nil {
				t.Fatal(err)
			}
			if !ok || got != tt.value {
				t.Errorf("Get() = (%q, %v), want (%q, true)", got, ok, tt.value)
			}
		})
	}
}

func TestInstallBootHook_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".bashrc")

	for i := 0; i < 3; i++ {
		if err := InstallBootHook(path, "/home/survon/bin/provision boot"); err != nil {
			t.Fatalf("InstallBootHook() #%d error = %v", i+1, err)
		}
	}

	if got := countLines(t, path, hookBegin); got != 1 {
		t.Errorf("profile contains %d hook blocks, want exactly 1", got)
	}
	if got := countLines(t, path, "exec /home/survon/bin/provision boot"); got != 1 {
		t.Errorf("profile contains %d exec lines, want exactly 1", got)
	}
}

func TestInstallBootHook_GuardsAgainstRemoteSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".bashrc")

	if err := InstallBootHook(path, "provision boot"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"SSH_CONNECTION", "SSH_TTY", "-t 0"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("hook block missing console guard %q:\n%s", want, data)
		}
	}
}

func TestRemoveBootHook(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".bashrc")
	if err := os.WriteFile(path, []byte("export FOO=\"bar\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := InstallBootHook(path, "provision boot"); err != nil {
		t.Fatal(err)
	}
	if err := RemoveBootHook(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), hookBegin) {
		t.Errorf("hook block not removed:\n%s", data)
	}
	if !strings.Contains(string(data), `export FOO="bar"`) {
		t.Errorf("unrelated content lost:\n%s", data)
	}
}
