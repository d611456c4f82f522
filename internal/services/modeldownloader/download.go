package modeldownloader

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
)

// DownloadDirect fetches a single file over HTTP into destPath, with a
// progress bar, resume support and retry with backoff.
func (m *Manager) DownloadDirect(url, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(destPath), err)
	}

	tmpPath := destPath + ".tmp"

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 5 * time.Minute
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 30 * time.Second

	if err := backoff.Retry(func() error {
		return m.downloadWithResume(url, tmpPath)
	}, b); err != nil {
		return err
	}

	return os.Rename(tmpPath, destPath)
}

func (m *Manager) downloadWithResume(url, tmpPath string) error {
	var initialSize int64
	if info, err := os.Stat(tmpPath); err == nil {
		initialSize = info.Size()
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if initialSize > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", initialSize))
	}

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 60 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   60 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
			IdleConnTimeout:       60 * time.Second,
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var totalSize int64
	flag := os.O_CREATE | os.O_WRONLY
	switch {
	case initialSize > 0 && resp.StatusCode == http.StatusPartialContent:
		totalSize = initialSize + resp.ContentLength
		flag |= os.O_APPEND
	case resp.StatusCode == http.StatusOK:
		// server ignored the range header; start over
		initialSize = 0
		totalSize = resp.ContentLength
		flag |= os.O_TRUNC
	default:
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	f, err := os.OpenFile(tmpPath, flag, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	progress := mpb.New(
		mpb.WithWidth(60),
		mpb.WithRefreshRate(180*time.Millisecond),
	)
	bar := progress.AddBar(totalSize,
		mpb.PrependDecorators(
			decor.Name(filepath.Base(tmpPath), decor.WC{W: 40, C: decor.DidentRight}),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		mpb.AppendDecorators(
			decor.EwmaETA(decor.ET_STYLE_GO, 90),
			decor.Name(" ] "),
			decor.EwmaSpeed(decor.UnitKiB, "% .2f", 60),
		),
	)
	if initialSize > 0 {
		bar.SetCurrent(initialSize)
	}

	reader := bar.ProxyReader(resp.Body)
	defer reader.Close()

	buf := make([]byte, 32*1024)
	for {
		n, rerr := reader.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write failed: %w", werr)
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return fmt.Errorf("read failed: %w", rerr)
		}
	}

	progress.Wait()
	return nil
}
