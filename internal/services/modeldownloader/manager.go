// Package modeldownloader fetches the base KoELECTRA checkpoint from the
// HuggingFace Hub and installs it into the server's model directory.
package modeldownloader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cozy-creator/hf-hub/hub"
	"go.uber.org/zap"
)

// checkpointFiles are copied from the hub snapshot into the install dir.
// tokenizer_config.json is optional; older repos do not ship it.
var checkpointFiles = []string{"config.json", "model.safetensors", "vocab.txt"}

var optionalFiles = []string{"tokenizer_config.json"}

// resolveBaseURL serves individual repo files when the snapshot API is
// unavailable.
var resolveBaseURL = "https://huggingface.co"

type Manager struct {
	log       *zap.Logger
	hubClient *hub.Client
}

func NewManager(log *zap.Logger, hfToken string) *Manager {
	client := hub.DefaultClient()
	if hfToken != "" {
		client.WithToken(hfToken)
	}
	return &Manager{
		log:       log.Named("model_downloader"),
		hubClient: client,
	}
}

// IsInstalled reports whether destDir already holds a complete checkpoint.
func (m *Manager) IsInstalled(destDir string) bool {
	for _, name := range checkpointFiles {
		if _, err := os.Stat(filepath.Join(destDir, name)); err != nil {
			return false
		}
	}
	return true
}

// EnsureInstalled downloads repoID and installs its checkpoint files into
// destDir, skipping the download when destDir is already complete. Hub
// failures are retried with exponential backoff.
func (m *Manager) EnsureInstalled(repoID, destDir string) error {
	if m.IsInstalled(destDir) {
		m.log.Info("base checkpoint already installed", zap.String("path", destDir))
		return nil
	}

	m.log.Info("downloading base checkpoint",
		zap.String("repo", repoID),
		zap.String("dest", destDir))

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 10 * time.Minute
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 30 * time.Second

	var snapshotDir string
	err := backoff.Retry(func() error {
		params := hub.DownloadParams{
			Repo: &hub.Repo{Id: repoID},
		}
		dir, err := m.hubClient.Download(&params)
		if err != nil {
			m.log.Warn("hub download failed, retrying", zap.Error(err))
			return err
		}
		snapshotDir = dir
		return nil
	}, b)
	if err != nil {
		m.log.Warn("hub snapshot unavailable, downloading files directly",
			zap.String("repo", repoID),
			zap.Error(err))
		if derr := m.downloadDirectFiles(repoID, destDir); derr != nil {
			return fmt.Errorf("failed to download %s: %w", repoID, derr)
		}
		return nil
	}

	return m.install(snapshotDir, destDir)
}

// downloadDirectFiles fetches the checkpoint files one by one from the
// repo's resolve endpoint.
func (m *Manager) downloadDirectFiles(repoID, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	for _, name := range checkpointFiles {
		url := fmt.Sprintf("%s/%s/resolve/main/%s", resolveBaseURL, repoID, name)
		if err := m.DownloadDirect(url, filepath.Join(destDir, name)); err != nil {
			return fmt.Errorf("failed to download %s: %w", name, err)
		}
	}
	for _, name := range optionalFiles {
		url := fmt.Sprintf("%s/%s/resolve/main/%s", resolveBaseURL, repoID, name)
		if err := m.DownloadDirect(url, filepath.Join(destDir, name)); err != nil {
			m.log.Warn("optional file not downloaded", zap.String("file", name), zap.Error(err))
		}
	}

	m.log.Info("base checkpoint installed", zap.String("path", destDir))
	return nil
}

// install copies the checkpoint files out of the hub snapshot.
func (m *Manager) install(snapshotDir, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	for _, name := range checkpointFiles {
		if err := copyFile(filepath.Join(snapshotDir, name), filepath.Join(destDir, name)); err != nil {
			return fmt.Errorf("failed to install %s: %w", name, err)
		}
	}
	for _, name := range optionalFiles {
		src := filepath.Join(snapshotDir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyFile(src, filepath.Join(destDir, name)); err != nil {
			return fmt.Errorf("failed to install %s: %w", name, err)
		}
	}

	m.log.Info("base checkpoint installed", zap.String("path", destDir))
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
