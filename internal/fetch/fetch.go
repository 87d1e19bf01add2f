// Package fetch downloads remote artifacts to local paths. Downloads are
// idempotent by construction: the new content lands via a temp file and
// an atomic rename, so a re-run converges to the same end state, readers
// never see a partial file, and a failed re-fetch leaves the previous
// artifact untouched.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/survon/provision/internal/monitoring"
)

// DefaultClient is used when no client is supplied. Large model files can
// take a while on appliance uplinks, so there is no overall timeout; the
// request is still cancellable through its context.
var DefaultClient = &http.Client{}

// Download fetches url into dest with the given file mode. An empty
// response body is an error: every artifact the provisioner fetches is
// useless at zero bytes.
func Download(ctx context.Context, client *http.Client, url, dest string, mode os.FileMode) error {
	if client == nil {
		client = DefaultClient
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s fetching %s", resp.Status, url)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".part*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if n == 0 {
		os.Remove(tmpName)
		return fmt.Errorf("%s returned an empty body", url)
	}

	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return err
	}

	monitoring.Debugf("fetch: %s -> %s (%d bytes in %s)", url, dest, n, time.Since(start).Round(time.Millisecond))
	return nil
}
