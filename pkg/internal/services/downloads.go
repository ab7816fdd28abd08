package services

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akina-dev/boorud/pkg/internal/services/booru"
	"github.com/rs/zerolog/log"
)

const downloadChunkSize = 8 * 1024

// IntegrityError flags a file whose content hash does not match the
// expected one; it earns one re-download, not a hard failure.
type IntegrityError struct {
	Path string
	Want string
	Got  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: content hash %s does not match expected %s", e.Path, e.Got, e.Want)
}

// Progress is invoked after every written chunk with the bytes so far
// and the remote size, or -1 when the remote did not say.
type Progress func(path string, current, total int64)

// Downloader drains the download queue of a store into a
// content-addressed directory tree under Base.
type Downloader struct {
	Base string

	// FastCheck accepts an existing file on size match alone (or bare
	// presence when the size is unknown) without rehashing it. Opt-in;
	// see the settings reference.
	FastCheck bool

	// KeepPartial leaves a partially written file behind on
	// cancellation instead of removing it.
	KeepPartial bool

	Attempts  int
	RetryWait time.Duration
	FileWait  time.Duration
	Progress  Progress

	hc *http.Client
}

type DownloadStats struct {
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Run pages through the store's downloadable files and fetches every
// one that is missing or fails validation. A file that exhausts its
// retries is logged and skipped; it never blocks the rest of the
// queue.
func (d *Downloader) Run(ctx context.Context, store *Store) (DownloadStats, error) {
	const pageSize = 200
	var stats DownloadStats

	for offset := 0; ; offset += pageSize {
		items, err := store.ListDownloadable(ctx, pageSize, offset)
		if err != nil {
			return stats, err
		}
		if len(items) == 0 {
			return stats, nil
		}

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			dest := d.LocalPath(item)
			if d.validFile(item, dest) {
				stats.Skipped++
				continue
			}

			if err := d.fetchFile(ctx, item, dest); err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				log.Warn().Err(err).Str("file", dest).Msg("Giving up on file, moving to the next one...")
				stats.Failed++
				continue
			}
			stats.Downloaded++

			// Spacing between file downloads, distinct from the
			// listing client's request spacing.
			wait := d.FileWait
			if wait <= 0 {
				wait = time.Second
			}
			if err := sleepCtx(ctx, wait); err != nil {
				return stats, err
			}
		}
	}
}

// LocalPath computes the sharded destination:
// <base>/<md5[0]>/<md5><ext>.
func (d *Downloader) LocalPath(item DownloadItem) string {
	name := item.MD5 + NormalizeExt(item.FileExt)
	return filepath.Join(d.Base, item.MD5[:1], name)
}

func (d *Downloader) validFile(item DownloadItem, dest string) bool {
	info, err := os.Stat(dest)
	if err != nil {
		return false
	}

	if item.FileSize > 0 && info.Size() != item.FileSize {
		log.Warn().Str("file", dest).Msg("File size doesn't match, re-downloading...")
		return false
	}

	if d.FastCheck {
		return true
	}

	sum, err := fileMD5(dest)
	if err != nil {
		return false
	}
	if sum != item.MD5 {
		log.Warn().Str("file", dest).Msg("File md5sum doesn't match, re-downloading...")
		return false
	}
	return true
}

func (d *Downloader) fetchFile(ctx context.Context, item DownloadItem, dest string) error {
	attempts := d.Attempts
	if attempts <= 0 {
		attempts = defaultFetchAttempts
	}
	wait := d.RetryWait
	if wait <= 0 {
		wait = defaultRetryWait
	}

	var transportTries, integrityTries int
	for {
		err := d.download(ctx, item, dest)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		var ie *IntegrityError
		if errors.As(err, &ie) {
			if integrityTries >= 1 {
				return err
			}
			integrityTries++
			log.Warn().Err(err).Msg("Downloaded file failed verification, re-downloading...")
			continue
		}

		transportTries++
		if transportTries >= attempts {
			return err
		}
		log.Warn().Err(err).Int("attempt", transportTries).Msg("Download failed, retrying...")
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

func (d *Downloader) download(ctx context.Context, item DownloadItem, dest string) error {
	target, err := resolveFileURL(item)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &booru.TransportError{Cause: err.Error(), Err: err}
	}

	hc := d.hc
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return &booru.TransportError{Cause: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &booru.TransportError{StatusCode: resp.StatusCode, Cause: resp.Status}
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	total := resp.ContentLength
	sum := md5.New()
	buf := make([]byte, downloadChunkSize)
	var current int64

	for {
		// A chunk in flight always completes its write; cancellation
		// is only honored between chunks.
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				out.Close()
				return err
			}
			sum.Write(buf[:n])
			current += int64(n)
			if d.Progress != nil {
				d.Progress(dest, current, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			return &booru.TransportError{Cause: readErr.Error(), Err: readErr}
		}

		if err := ctx.Err(); err != nil {
			out.Close()
			if !d.KeepPartial {
				os.Remove(dest)
			}
			if d.Progress != nil {
				d.Progress(dest, -1, total)
			}
			return err
		}
	}

	if err := out.Close(); err != nil {
		return err
	}

	if got := fmt.Sprintf("%x", sum.Sum(nil)); got != item.MD5 {
		return &IntegrityError{Path: dest, Want: item.MD5, Got: got}
	}
	return nil
}

func resolveFileURL(item DownloadItem) (string, error) {
	if strings.HasPrefix(item.FileURL, "http") {
		return item.FileURL, nil
	}

	base, err := url.Parse(item.Host)
	if err != nil {
		return "", fmt.Errorf("invalid board host %q: %v", item.Host, err)
	}
	ref, err := url.Parse(item.FileURL)
	if err != nil {
		return "", fmt.Errorf("invalid file url %q: %v", item.FileURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum := md5.New()
	if _, err := io.Copy(sum, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sum.Sum(nil)), nil
}
