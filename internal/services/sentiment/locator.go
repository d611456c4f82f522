package sentiment

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// WeightsFile is the only weights format the loader accepts.
const WeightsFile = "model.safetensors"

// checkpointFiles are the files a usable checkpoint directory must contain.
var checkpointFiles = []string{"config.json", WeightsFile, "vocab.txt"}

// ResolveCheckpoint picks the checkpoint directory to serve: the fine-tuned
// directory when it holds a complete checkpoint, otherwise the base model
// directory. It returns an error when neither is usable.
func ResolveCheckpoint(log *zap.Logger, finetunedDir, baseDir string) (string, error) {
	if ok, missing := checkpointComplete(finetunedDir); ok {
		log.Info("using fine-tuned checkpoint", zap.String("path", finetunedDir))
		return finetunedDir, nil
	} else if missing != "" {
		log.Warn("fine-tuned checkpoint incomplete, falling back to base model",
			zap.String("path", finetunedDir),
			zap.String("missing", missing))
	}

	if ok, missing := checkpointComplete(baseDir); ok {
		log.Info("using base checkpoint", zap.String("path", baseDir))
		return baseDir, nil
	} else if missing != "" {
		log.Error("base checkpoint incomplete",
			zap.String("path", baseDir),
			zap.String("missing", missing))
	}

	return "", fmt.Errorf("no usable checkpoint in %s or %s", finetunedDir, baseDir)
}

// checkpointComplete reports whether dir holds every required checkpoint file.
// The second return value names the first missing file when the directory
// exists but is incomplete.
func checkpointComplete(dir string) (bool, string) {
	if dir == "" {
		return false, ""
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return false, ""
	}
	for _, name := range checkpointFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false, name
		}
	}
	return true, ""
}
