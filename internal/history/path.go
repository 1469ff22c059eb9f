package history

import (
	"fmt"
	"os"
	"path/filepath"
)

func DefaultPath() string {
	if stateDir := os.Getenv("XDG_STATE_HOME"); stateDir != "" {
		return filepath.Join(stateDir, "vibecheck", "history.jsonl")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "vibecheck", "history.jsonl")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("vibecheck-%d", os.Getuid()), "history.jsonl")
}
