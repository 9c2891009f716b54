// Package fetch downloads candidate artifacts to local files so the
// validator can inspect actual bytes.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/calmstack/mantra/internal/domain"
	"github.com/calmstack/mantra/internal/validate"
)

const fetchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxArtifactBytes caps a single download (10-minute audio is well under
// this even at high bitrates).
const maxArtifactBytes = 256 << 20

// Fetcher resolves a reference to a local file path. Failure is an explicit
// error, never a partial file.
type Fetcher interface {
	Fetch(ctx context.Context, reference string) (string, error)
}

// HTTPFetcher downloads over HTTP into a cache directory. Downloads are
// staged in a temp file and renamed in only after the body passed basic
// audio sniffing, so the cache never holds partial or non-audio content.
type HTTPFetcher struct {
	client   *http.Client
	cacheDir string
}

// NewHTTPFetcher creates a fetcher caching into cacheDir.
func NewHTTPFetcher(cacheDir string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		cacheDir: cacheDir,
	}
}

// Fetch returns a local path for reference, reusing a previous download of
// the same reference when present.
func (f *HTTPFetcher) Fetch(ctx context.Context, reference string) (string, error) {
	if reference == "" {
		return "", domain.ErrEmptyReference
	}

	target := filepath.Join(f.cacheDir, cacheFilename(reference))
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return "", fetchErr(reference, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reference, nil)
	if err != nil {
		return "", fetchErr(reference, err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fetchErr(reference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fetchErr(reference, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	tmp, err := os.CreateTemp(f.cacheDir, "download-*.part")
	if err != nil {
		return "", fetchErr(reference, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxArtifactBytes))
	closeErr := tmp.Close()
	if err != nil {
		return "", fetchErr(reference, err)
	}
	if closeErr != nil {
		return "", fetchErr(reference, closeErr)
	}
	if n == 0 {
		return "", fetchErr(reference, fmt.Errorf("downloaded file is empty"))
	}

	head, err := readHead(tmpPath, 4096)
	if err != nil {
		return "", fetchErr(reference, err)
	}
	if !validate.LooksLikeAudio(head) {
		return "", fetchErr(reference, fmt.Errorf("downloaded file is not audio"))
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return "", fetchErr(reference, err)
	}
	return target, nil
}

func cacheFilename(reference string) string {
	sum := sha256.Sum256([]byte(reference))
	return hex.EncodeToString(sum[:8]) + ".audio"
}

func readHead(path string, n int) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	buf := make([]byte, n)
	read, err := io.ReadFull(file, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}

func fetchErr(reference string, err error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeArtifactFetchFailed,
		fmt.Sprintf("failed to fetch %s", reference), err)
}
