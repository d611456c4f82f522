// Package archiver snapshots checkpoint directories into tar.gz archives and
// hands them to file storage. Completed training runs are archived so a bad
// fine-tune can be rolled back.
package archiver

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/labzang/sentiment-server/internal/services/filestorage"
	"github.com/labzang/sentiment-server/internal/utils/hashutil"
	"go.uber.org/zap"
)

type Archiver struct {
	log     *zap.Logger
	storage filestorage.FileStorage
	pool    *workerpool.WorkerPool
}

func New(log *zap.Logger, storage filestorage.FileStorage) *Archiver {
	return &Archiver{
		log:     log.Named("archiver"),
		storage: storage,
		pool:    workerpool.New(1),
	}
}

// ArchiveAsync schedules an archive of dir without blocking the caller.
func (a *Archiver) ArchiveAsync(dir string) {
	a.pool.Submit(func() {
		if _, err := a.Archive(dir); err != nil {
			a.log.Error("checkpoint archive failed",
				zap.String("dir", dir),
				zap.Error(err))
		}
	})
}

// Archive packs dir into a timestamped tar.gz, stores it, and returns the
// stored location. The archive name carries a BLAKE3 digest of the weights so
// snapshots of identical checkpoints are recognizable.
func (a *Archiver) Archive(dir string) (string, error) {
	weights := filepath.Join(dir, "model.safetensors")
	digest, err := hashutil.Blake3File(weights)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint checkpoint: %w", err)
	}

	name := fmt.Sprintf("checkpoint-%s-%s.tar.gz",
		time.Now().UTC().Format("20060102T150405"), digest[:12])

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeTarGz(pw, dir))
	}()

	location, err := a.storage.Store(name, pr)
	if err != nil {
		return "", fmt.Errorf("failed to store archive: %w", err)
	}

	a.log.Info("checkpoint archived",
		zap.String("dir", dir),
		zap.String("location", location),
		zap.String("fingerprint", digest))
	return location, nil
}

// StopWait blocks until pending archives finish.
func (a *Archiver) StopWait() {
	a.pool.StopWait()
}

func writeTarGz(w io.Writer, dir string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}
