package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	clog "github.com/charmbracelet/log"

	"github.com/toeirei/keyfetch/internal/logging"
	"github.com/toeirei/keyfetch/internal/testutil"
)

// isolate redirects config discovery and the SSH dir to throwaway
// directories and returns the SSH dir.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	sshDir := filepath.Join(t.TempDir(), ".ssh")
	t.Setenv("KEYFETCH_SSH_DIR", sshDir)
	return sshDir
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "dev") {
		t.Errorf("expected dev version in output, got %q", out)
	}
}

func TestProvisionEndToEnd(t *testing.T) {
	sshDir := isolate(t)

	var keysPath string
	keyHost := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keysPath = r.URL.Path
		w.Write([]byte(`[{"key":"` + testutil.ValidED25519Key + `"},{"key":"` + testutil.ValidRSAKey + `"}]`))
	}))
	defer keyHost.Close()

	var notifyPath string
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		notifyPath = r.URL.Path
	}))
	defer ntfy.Close()

	t.Setenv("KEYFETCH_KEY_API_URL", keyHost.URL)
	t.Setenv("KEYFETCH_NOTIFY_URL", ntfy.URL)
	t.Setenv("KEYFETCH_RETRY_DELAY", "10ms")

	out, err := runCommand(t, "acctest", "topictest")
	if err != nil {
		t.Fatalf("provisioning run failed: %v\n%s", err, out)
	}

	if keysPath != "/users/acctest/keys" {
		t.Errorf("fetched %q, want /users/acctest/keys", keysPath)
	}
	if notifyPath != "/topictest" {
		t.Errorf("notified %q, want /topictest", notifyPath)
	}

	content, err := os.ReadFile(filepath.Join(sshDir, "authorized_keys"))
	if err != nil {
		t.Fatalf("authorized_keys not written: %v", err)
	}
	if !strings.Contains(string(content), testutil.ValidED25519Key) ||
		!strings.Contains(string(content), testutil.ValidRSAKey) {
		t.Errorf("keys missing from store:\n%s", content)
	}
	if !strings.Contains(out, "2 added") {
		t.Errorf("expected summary in output, got %q", out)
	}
}

func TestProvisionFetchFailureExitsNonZero(t *testing.T) {
	isolate(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	t.Setenv("KEYFETCH_KEY_API_URL", url)
	t.Setenv("KEYFETCH_RETRY_COUNT", "2")
	t.Setenv("KEYFETCH_RETRY_DELAY", "10ms")

	_, err := runCommand(t, "acctest")
	if err == nil {
		t.Fatal("expected fetch failure to surface as an error")
	}
}

func TestCheckCommand(t *testing.T) {
	sshDir := isolate(t)
	if err := os.MkdirAll(sshDir, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "# comment\n" + testutil.ValidED25519Key + "\n"
	if err := os.WriteFile(filepath.Join(sshDir, "authorized_keys"), []byte(content), 0600); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out, err := runCommand(t, "check")
	if err != nil {
		t.Fatalf("check failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 valid keys, 0 problem lines") {
		t.Errorf("unexpected check output: %q", out)
	}
}

func TestCheckCommandBreaksDownAlgorithms(t *testing.T) {
	sshDir := isolate(t)
	if err := os.MkdirAll(sshDir, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := testutil.ValidED25519Key + "\n" + testutil.ValidRSAKey + "\n"
	if err := os.WriteFile(filepath.Join(sshDir, "authorized_keys"), []byte(content), 0600); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out, err := runCommand(t, "check")
	if err != nil {
		t.Fatalf("check failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2 valid keys, 0 problem lines") {
		t.Errorf("unexpected check summary: %q", out)
	}
	// Per-algorithm breakdown, sorted.
	ed := strings.Index(out, "ssh-ed25519: 1")
	rsa := strings.Index(out, "ssh-rsa: 1")
	if ed < 0 || rsa < 0 {
		t.Fatalf("algorithm breakdown missing: %q", out)
	}
	if ed > rsa {
		t.Errorf("breakdown not sorted by algorithm: %q", out)
	}
}

func TestSubcommandsRelyOnPersistentSetup(t *testing.T) {
	// Setup runs once via the root's PersistentPreRunE; a subcommand with
	// its own PreRunE would load the config twice per invocation.
	root := NewRootCmd()
	for _, sub := range root.Commands() {
		if sub.PreRunE != nil {
			t.Errorf("%s duplicates setup via PreRunE", sub.Name())
		}
	}
}

func TestExecuteLocalizesFetchFailure(t *testing.T) {
	isolate(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	t.Setenv("KEYFETCH_KEY_API_URL", url)
	t.Setenv("KEYFETCH_RETRY_COUNT", "1")
	t.Setenv("KEYFETCH_RETRY_DELAY", "10ms")

	var buf bytes.Buffer
	oldLogger := logging.L
	logging.L = clog.New(&buf)
	defer func() { logging.L = oldLogger }()

	oldArgs := os.Args
	os.Args = []string{"keyfetch", "acc%dent"}
	defer func() { os.Args = oldArgs }()

	if code := Execute(); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	out := buf.String()
	if !strings.Contains(out, "could not fetch keys for 'acc%dent'") {
		t.Errorf("expected localized fetch failure message, got:\n%s", out)
	}
	if strings.Contains(out, "MISSING") || strings.Contains(out, "%!") {
		t.Errorf("'%%' in the account name was interpreted as a format verb:\n%s", out)
	}
}

func TestCheckCommandFlagsProblems(t *testing.T) {
	sshDir := isolate(t)
	if err := os.MkdirAll(sshDir, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := testutil.ValidED25519Key + "\nssh-ed25519 garbage!!! broken\n"
	if err := os.WriteFile(filepath.Join(sshDir, "authorized_keys"), []byte(content), 0600); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := runCommand(t, "check")
	if err == nil {
		t.Fatal("expected check to fail on a malformed line")
	}
}
