package player

type playbackBackend interface {
	Load(path string) error
	Play() error
	Pause() error
	Stop() error
	SetOnEOF(callback func())
	Close() error
}
