// Package selfupdate compares the running provisioner against the
// published copy before any pipeline step runs, and lets the operator
// decide whether to replace and restart.
//
// The check fails open: if the network is unreachable the run continues
// with the local copy, because provisioning must not depend on the update
// channel being up. The actual process replacement is left to the caller
// so tests can assert on the Decision without exiting the test process.
package selfupdate

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/survon/provision/internal/fsutil"
	"github.com/survon/provision/internal/monitoring"
)

// Decision is the outcome of the update check.
type Decision int

const (
	// ContinueCurrent means the running copy is current (or the operator
	// declined the update) and the run proceeds unchanged.
	ContinueCurrent Decision = iota

	// ContinueOffline means the remote copy could not be fetched and the
	// run proceeds with the local copy.
	ContinueOffline

	// Replaced means the saved copy was overwritten with the remote copy
	// and the caller must re-exec the provisioner with identical
	// arguments. No further work may happen in this process.
	Replaced
)

func (d Decision) String() string {
	switch d {
	case ContinueCurrent:
		return "continue-with-current"
	case ContinueOffline:
		return "continue-offline"
	case Replaced:
		return "replaced-and-restart"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Fingerprint identifies the content of one copy of the provisioner.
// Hash is preferred; Size is the degraded fallback when a copy could not
// be hashed.
type Fingerprint struct {
	Hash string
	Size int64
}

// Differ reports whether two fingerprints identify different content.
// When either hash is missing the comparison degrades to byte length and
// the degradation is logged.
func Differ(a, b Fingerprint) bool {
	if a.Hash != "" && b.Hash != "" {
		return a.Hash != b.Hash
	}
	monitoring.Logf("selfupdate: content hash unavailable, falling back to size comparison (degraded check)")
	return a.Size != b.Size
}

// FingerprintFile computes the fingerprint of the file at path. A hash
// read failure is not fatal as long as the size is known.
func FingerprintFile(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, err
	}
	fp := Fingerprint{Size: info.Size()}

	f, err := os.Open(path)
	if err != nil {
		return fp, nil
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fp, nil
	}
	fp.Hash = hex.EncodeToString(h.Sum(nil))
	return fp, nil
}

// Checker performs the pre-pipeline self-update check.
type Checker struct {
	// ExecPath is the path of the running executable. Empty when the
	// binary runs from a transient source, in which case the check is
	// skipped entirely.
	ExecPath string

	// InstallPath is the well-known saved-copy location that menu-driven
	// re-invocations use. The check guarantees an executable copy exists
	// there regardless of outcome.
	InstallPath string

	// RemoteURL is where the published provisioner lives.
	RemoteURL string

	// In and Out carry the operator prompt. A non-interactive In (EOF)
	// counts as declining the update.
	In  io.Reader
	Out io.Writer

	// TempDir overrides the transient-source detection root. Defaults
	// to os.TempDir().
	TempDir string

	Client *http.Client
}

func (c *Checker) client() *http.Client {
	if c.Client == nil {
		return &http.Client{Timeout: 30 * time.Second}
	}
	return c.Client
}

// Transient reports whether the provisioner is running from a source
// with no saved local copy to protect, such as a binary staged under
// tempDir by `go run` or a streamed install.
func Transient(execPath, tempDir string) bool {
	if execPath == "" {
		return true
	}
	if _, err := os.Stat(execPath); err != nil {
		return true
	}
	if rel, err := filepath.Rel(tempDir, execPath); err == nil && !strings.HasPrefix(rel, "..") {
		return true
	}
	return false
}

func (c *Checker) tempDir() string {
	if c.TempDir == "" {
		return os.TempDir()
	}
	return c.TempDir
}

// Check runs the self-update decision. It never returns Replaced without
// first having written the remote copy over InstallPath, and the saved-copy
// guarantee holds on every path, including when the check itself is skipped.
func (c *Checker) Check(ctx context.Context) (Decision, error) {
	defer c.ensureSavedCopy()

	if Transient(c.ExecPath, c.tempDir()) {
		monitoring.Debugf("selfupdate: running from a transient source, skipping check")
		return ContinueCurrent, nil
	}

	scratch, err := c.fetchRemote(ctx)
	if err != nil {
		fmt.Fprintf(c.Out, "Update check unavailable (%v); continuing with the local copy.\n", err)
		return ContinueOffline, nil
	}
	defer os.Remove(scratch)

	local, err := FingerprintFile(c.ExecPath)
	if err != nil {
		return ContinueCurrent, errors.Wrap(err, "failed to fingerprint local copy")
	}
	remote, err := FingerprintFile(scratch)
	if err != nil {
		return ContinueCurrent, errors.Wrap(err, "failed to fingerprint remote copy")
	}

	if !Differ(local, remote) {
		monitoring.Debugf("selfupdate: local copy is current")
		return ContinueCurrent, nil
	}

	if !c.promptReplace() {
		fmt.Fprintln(c.Out, "Keeping the current provisioner.")
		return ContinueCurrent, nil
	}

	if err := fsutil.CopyFile(scratch, c.InstallPath, 0755); err != nil {
		return ContinueCurrent, errors.Wrap(err, "failed to install updated provisioner")
	}
	fmt.Fprintln(c.Out, "Provisioner updated; restarting.")
	return Replaced, nil
}

func (c *Checker) fetchRemote(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RemoteURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s fetching %s", resp.Status, c.RemoteURL)
	}

	tmp, err := os.CreateTemp("", "provision-update-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// promptReplace asks the operator whether to replace and restart. Only an
// explicit yes upgrades; EOF or anything else keeps the current copy.
func (c *Checker) promptReplace() bool {
	fmt.Fprint(c.Out, "A newer provisioner is available. Replace and restart? [y/N] ")
	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// ensureSavedCopy guarantees an executable copy of the running binary at
// InstallPath so later menu-driven re-invocations work without network
// access. Only a truly unresolvable executable has nothing to copy.
func (c *Checker) ensureSavedCopy() {
	if c.InstallPath == "" || fsutil.Exists(c.InstallPath) {
		return
	}
	if c.ExecPath == "" || !fsutil.Exists(c.ExecPath) {
		monitoring.Debugf("selfupdate: no resolvable executable to save at %s", c.InstallPath)
		return
	}
	if err := fsutil.CopyFile(c.ExecPath, c.InstallPath, 0755); err != nil {
		monitoring.Logf("selfupdate: failed to save a local copy at %s: %v", c.InstallPath, err)
		return
	}
	monitoring.Debugf("selfupdate: saved a local copy at %s", c.InstallPath)
}
