package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a leading "~" to the current user's home directory and
// returns an absolute, cleaned path.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
