package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/talgya/crossroads/internal/ecs"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher republishes the Simulation singleton whenever the config file
// changes on disk. Removing the file removes the singleton.
type Watcher struct {
	path    string
	world   *ecs.World
	watcher *fsnotify.Watcher

	// Reloaded receives the new config after each successful publish.
	// Sends are dropped when nobody is listening.
	Reloaded chan Config

	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Watch starts watching path's directory. Editors often replace files by
// rename, so the directory is watched rather than the file itself.
func Watch(path string, w *ecs.World) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	cw := &Watcher{
		path:     abs,
		world:    w,
		watcher:  fw,
		Reloaded: make(chan Config, 1),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go cw.run()
	return cw, nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (cw *Watcher) Close() error {
	var err error
	cw.once.Do(func() {
		close(cw.closeCh)
		err = cw.watcher.Close()
		<-cw.done
	})
	return err
}

// run reloads once events for the file have been quiet for reloadDebounce,
// so a truncate-then-write save is read whole.
func (cw *Watcher) run() {
	defer close(cw.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(reloadDebounce)
		case <-timer.C:
			cw.reload()
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		case <-cw.closeCh:
			return
		}
	}
}

func (cw *Watcher) reload() {
	data, err := os.ReadFile(cw.path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("config file removed, simulation toggles withdrawn", "path", cw.path)
		Publish(cw.world, nil)
		return
	}
	if err != nil {
		slog.Warn("config reload failed", "path", cw.path, "error", err)
		return
	}

	cfg, err := Parse(data)
	if err != nil {
		// Keep the last good toggles rather than blocking the world on a typo.
		slog.Warn("config reload rejected", "path", cw.path, "error", err)
		return
	}

	Publish(cw.world, cfg.Simulation)
	slog.Info("config reloaded",
		"path", cw.path,
		"simulation_present", cfg.Simulation != nil,
	)

	select {
	case cw.Reloaded <- cfg:
	default:
	}
}
