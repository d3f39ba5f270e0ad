package config

// Watcher is what the server needs from a configuration source that can
// change at runtime.
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}

// StaticWatcher serves a fixed configuration. It is used when the server
// runs without a config file.
type StaticWatcher struct {
	cfg *Config
}

var _ Watcher = (*StaticWatcher)(nil)

func NewStaticWatcher(cfg *Config) *StaticWatcher {
	return &StaticWatcher{cfg: cfg}
}

func (w *StaticWatcher) GetCurrentConfig() *Config { return w.cfg }

// Subscribe returns a closed channel: a static configuration never changes.
func (w *StaticWatcher) Subscribe() <-chan *Config {
	ch := make(chan *Config)
	close(ch)
	return ch
}

func (w *StaticWatcher) Close() error { return nil }
