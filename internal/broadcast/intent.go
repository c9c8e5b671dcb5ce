package broadcast

import (
	"time"

	"github.com/google/uuid"
)

const (
	SourceDirect   = "direct"
	SourceSpool    = "spool"
	SourceThumbbar = "thumbbar"
	SourceMediaKey = "media-key"
	SourceSMTC     = "smtc"
)

// Intent is one broadcast carrying a widget action tag. An empty Action means
// the broadcast arrived without one.
type Intent struct {
	ID          string    `json:"id"`
	Action      string    `json:"action,omitempty"`
	Source      string    `json:"source,omitempty"`
	RequestCode int32     `json:"requestCode,omitempty"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

// Handler consumes intents. It may be called from several goroutines at once.
type Handler func(intent Intent)

func NewIntent(action string, source string) Intent {
	return Intent{
		ID:         uuid.NewString(),
		Action:     action,
		Source:     source,
		ReceivedAt: time.Now().UTC(),
	}
}
