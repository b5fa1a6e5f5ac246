package driver

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"

	"keywordpir/usecase"
)

// ServiceConfig lists the usecases a server publishes.
type ServiceConfig struct {
	Usecases []UsecaseEntry `json:"usecases"`
}

type UsecaseEntry struct {
	// Database is the rows file, relative to the service config file.
	Database string         `json:"database"`
	Format   RowsFormat     `json:"format,omitempty"`
	Usecase  usecase.Config `json:"usecase"`
}

// LoadServiceConfig decodes a JSON service config. Relative database and key
// file paths are resolved against the directory of path.
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var cfg ServiceConfig
	if err := codec.NewDecoder(f, new(codec.JsonHandle)).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range cfg.Usecases {
		e := &cfg.Usecases[i]
		e.Database = resolve(dir, e.Database)
		if e.Usecase.SymmetricPir != nil {
			args := *e.Usecase.SymmetricPir
			args.DatabaseEncryptionKeyFilePath = resolve(dir, args.DatabaseEncryptionKeyFilePath)
			e.Usecase.SymmetricPir = &args
		}
	}
	return &cfg, nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// Reloader rebuilds the usecases of a service config and publishes the ones
// that build. A usecase that fails to build keeps serving its previous
// versions.
type Reloader struct {
	path  string
	store *usecase.Store

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	signals chan os.Signal
	done    chan struct{}
}

func NewReloader(path string, store *usecase.Store) *Reloader {
	return &Reloader{path: path, store: store}
}

// Reload builds every configured usecase in parallel, publishes the
// successes and removes usecases no longer configured. The returned error
// joins the per-usecase failures.
func (r *Reloader) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := LoadServiceConfig(r.path)
	if err != nil {
		logrus.WithError(err).WithField("config", r.path).Error("Failed to load service config")
		return err
	}

	built := make([]*usecase.Usecase, len(cfg.Usecases))
	errs := make([]error, len(cfg.Usecases))
	var wg sync.WaitGroup
	for i := range cfg.Usecases {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			built[i], errs[i] = buildEntry(cfg.Usecases[i])
		}(i)
	}
	wg.Wait()

	configured := make(map[string]bool)
	for i, e := range cfg.Usecases {
		name := e.Usecase.Name
		configured[name] = true
		log := logrus.WithField("usecase", name)
		if errs[i] != nil {
			errs[i] = fmt.Errorf("usecase %q: %w", name, errs[i])
			log.WithError(errs[i]).Error("Failed to build usecase, keeping previous versions")
			continue
		}
		if _, err := r.store.Set(name, built[i], built[i].Config().VersionCount); err != nil {
			errs[i] = err
		}
	}
	for _, name := range r.store.Names() {
		if !configured[name] {
			r.store.Set(name, nil, 0)
		}
	}
	return errors.Join(errs...)
}

func buildEntry(e UsecaseEntry) (*usecase.Usecase, error) {
	rows, err := LoadRowsFile(e.Database, e.Format)
	if err != nil {
		return nil, err
	}
	return usecase.Build(e.Usecase, rows)
}

// Watch reloads on writes to the config file and on SIGHUP until Close.
func (r *Reloader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory so editors that replace the file are noticed.
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return err
	}
	r.watcher = watcher
	r.signals = make(chan os.Signal, 1)
	r.done = make(chan struct{})
	signal.Notify(r.signals, syscall.SIGHUP)

	target := filepath.Clean(r.path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				logrus.WithField("event", event.String()).Info("Service config changed, reloading")
				r.Reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logrus.WithError(err).Warn("Config watcher error")
			case <-r.signals:
				logrus.Info("Received SIGHUP, reloading")
				r.Reload()
			case <-r.done:
				return
			}
		}
	}()
	return nil
}

func (r *Reloader) Close() error {
	if r.watcher == nil {
		return nil
	}
	signal.Stop(r.signals)
	close(r.done)
	return r.watcher.Close()
}
