package broadcast

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
)

const (
	intentExt = ".intent"
	tmpExt    = ".tmp"
)

// PendingIntent is what a widget button holds on to: the action it will
// broadcast and a request code that keeps buttons apart.
type PendingIntent struct {
	Action      string
	RequestCode int32
}

func NewPendingIntent(action string) PendingIntent {
	return PendingIntent{
		Action:      action,
		RequestCode: requestCode(action),
	}
}

// Fire writes the intent into the spool directory. The file is renamed into
// place so the receiver never sees a partial write.
func (p PendingIntent) Fire(dir string) (Intent, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Intent{}, fmt.Errorf("create spool dir: %w", err)
	}

	intent := Intent{
		ID:          uuid.NewString(),
		Action:      p.Action,
		Source:      SourceSpool,
		RequestCode: p.RequestCode,
		ReceivedAt:  time.Now().UTC(),
	}

	body, err := json.Marshal(intent)
	if err != nil {
		return Intent{}, fmt.Errorf("encode intent: %w", err)
	}

	base := strconv.FormatInt(int64(uint32(p.RequestCode)), 16) + "-" + intent.ID
	tmpPath := filepath.Join(dir, base+tmpExt)
	finalPath := filepath.Join(dir, base+intentExt)

	if err := os.WriteFile(tmpPath, body, 0o644); err != nil {
		return Intent{}, fmt.Errorf("write intent: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return Intent{}, fmt.Errorf("publish intent: %w", err)
	}

	return intent, nil
}

// requestCode is the 31-based string hash the widget provider used for its
// per-button request codes.
func requestCode(action string) int32 {
	var hash int32
	for _, unit := range utf16.Encode([]rune(action)) {
		hash = 31*hash + int32(unit)
	}
	return hash
}
