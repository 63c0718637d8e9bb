/**
 * Verified Fetch for the OCR training-data toolkit
 *
 * Downloads remote dataset artifacts into an on-disk cache and verifies
 * them by SHA-256 digest. A cached file whose digest matches is returned
 * without any network I/O; anything else is re-downloaded to a temporary
 * file, hashed while streaming, and atomically renamed into place only
 * when the digest checks out.
 *
 * Concurrency contract: safe for concurrent calls on distinct URLs
 * (distinct cache paths). Concurrent calls for the same URL are not
 * serialized here; callers needing that must serialize externally.
 */

package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/ocr-trainingdata/dataerrors"
	"github.com/adverant/nexus/ocr-trainingdata/logging"
)

// Fetcher downloads and verifies remote files into a local cache
type Fetcher struct {
	httpClient *http.Client
	logger     *logging.Logger
}

// Options configures a Fetcher
type Options struct {
	// Timeout bounds each download end to end (default: 10 minutes);
	// without it a hung download can hang an entire assembly
	Timeout time.Duration

	// Logger for download progress messages; nil means a package default
	Logger *logging.Logger
}

// NewFetcher creates a new fetcher
func NewFetcher(opts *Options) *Fetcher {
	if opts == nil {
		opts = &Options{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger("Fetch")
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// CachePath returns the deterministic cache location for a URL: the
// basename of the URL path joined with cacheDir.
func CachePath(rawURL, cacheDir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", dataerrors.NewInvalidArgumentError(fmt.Sprintf("URL %q has no usable filename", rawURL))
	}
	return filepath.Join(cacheDir, name), nil
}

// DownloadAndVerify returns the local cache path for url, downloading
// only if the cached copy is absent or fails digest verification.
//
// expectedSHA256 may be empty, in which case existence alone counts as
// a cache hit and downloads are accepted without verification (used for
// the per-image COCO-Text fetches, which publish no digests).
func (f *Fetcher) DownloadAndVerify(ctx context.Context, rawURL, cacheDir, expectedSHA256 string) (string, error) {
	expectedSHA256 = strings.ToLower(strings.TrimSpace(expectedSHA256))

	// Validate the URL before touching the filesystem
	cachePath, err := CachePath(rawURL, cacheDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory %s: %w", cacheDir, err)
	}

	if ok, err := f.cacheValid(cachePath, expectedSHA256); err != nil {
		return "", err
	} else if ok {
		f.logger.Debug("Cache hit", "url", rawURL, "path", cachePath)
		return cachePath, nil
	}

	f.logger.Debug("Downloading", "url", rawURL, "path", cachePath)

	actual, tmpPath, err := f.downloadToTemp(ctx, rawURL, cachePath)
	if err != nil {
		return "", err
	}

	if expectedSHA256 != "" && actual != expectedSHA256 {
		os.Remove(tmpPath)
		return "", dataerrors.NewVerificationError(rawURL, expectedSHA256, actual)
	}

	if err := os.Rename(tmpPath, cachePath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move download into cache: %w", err)
	}

	return cachePath, nil
}

// cacheValid reports whether the file at cachePath exists and matches
// the expected digest (or merely exists, when no digest was supplied).
func (f *Fetcher) cacheValid(cachePath, expectedSHA256 string) (bool, error) {
	info, err := os.Stat(cachePath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat cache entry %s: %w", cachePath, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("cache entry %s is a directory", cachePath)
	}
	if expectedSHA256 == "" {
		return true, nil
	}

	actual, err := FileSHA256(cachePath)
	if err != nil {
		return false, err
	}
	if actual != expectedSHA256 {
		f.logger.Warn("Cached file failed verification, re-downloading",
			"path", cachePath, "expected", expectedSHA256, "actual", actual)
		return false, nil
	}
	return true, nil
}

// downloadToTemp streams the resource into a uniquely named temp file
// next to cachePath, hashing as it copies. Returns the hex digest and
// the temp path; the temp file is removed on any error.
func (f *Fetcher) downloadToTemp(ctx context.Context, rawURL, cachePath string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", "", dataerrors.NewDownloadFailedError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", dataerrors.NewDownloadFailedError(rawURL,
			fmt.Errorf("unexpected HTTP status %d", resp.StatusCode))
	}

	tmpPath := fmt.Sprintf("%s.tmp-%s", cachePath, uuid.NewString())
	out, err := os.Create(tmpPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp file %s: %w", tmpPath, err)
	}

	hasher := sha256.New()
	_, copyErr := io.Copy(out, io.TeeReader(resp.Body, hasher))
	closeErr := out.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return "", "", dataerrors.NewDownloadFailedError(rawURL, copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("failed to finalize temp file %s: %w", tmpPath, closeErr)
	}

	return hex.EncodeToString(hasher.Sum(nil)), tmpPath, nil
}

// FileSHA256 computes the hex SHA-256 digest of a file's contents
func FileSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", filePath, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", filePath, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
