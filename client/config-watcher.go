package client

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/simpleiot/budgetbot/data"
)

// ConfigWatcher reloads the YAML config when the file changes and passes
// valid configs to subscribers. Invalid edits are logged and ignored.
type ConfigWatcher struct {
	path     string
	debounce time.Duration
	subs     []func(data.Config)
	stop     chan struct{}
	stopOnce sync.Once
}

// NewConfigWatcher creates a watcher for the config file at path
func NewConfigWatcher(path string, subs ...func(data.Config)) *ConfigWatcher {
	return &ConfigWatcher{
		path:     path,
		debounce: 200 * time.Millisecond,
		subs:     subs,
		stop:     make(chan struct{}),
	}
}

// Run watches the config file until stopped. The directory is watched
// so that editors which replace the file are handled.
func (cw *ConfigWatcher) Run() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("Error creating config watcher: %w", err)
	}
	defer w.Close()

	err = w.Add(filepath.Dir(cw.path))
	if err != nil {
		return fmt.Errorf("Error watching config dir: %w", err)
	}

	name := filepath.Clean(cw.path)

	reload := time.NewTimer(time.Hour)
	reload.Stop()

	for {
		select {
		case <-cw.stop:
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				reload.Reset(cw.debounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Println("Config watcher error: ", err)

		case <-reload.C:
			c, err := data.LoadConfig(cw.path)
			if err != nil {
				log.Println("Error reloading config, keeping the old one: ", err)
				continue
			}

			log.Println("Config reloaded from ", cw.path)
			for _, s := range cw.subs {
				s(c)
			}
		}
	}
}

// Stop the watcher
func (cw *ConfigWatcher) Stop(_ error) {
	cw.stopOnce.Do(func() { close(cw.stop) })
}
