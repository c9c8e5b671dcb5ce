package platform

import (
	"benwidget/internal/broadcast"
	"benwidget/internal/player"
)

// Service owns the desktop surfaces that act as the widget: anything the user
// clicks there becomes a broadcast for the relay.
type Service interface {
	Start() error
	Stop() error
	HandlePlayerState(state player.State)
}

// Receiver is where widget broadcasts go.
type Receiver interface {
	Receive(intent broadcast.Intent)
}
