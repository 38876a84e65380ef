package backend

import (
	"os"
	"path/filepath"

	tea "charm.land/bubbletea/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DropDirMsg is sent when the contents of the drop directory change.
type DropDirMsg struct {
	// Path is the file that changed.
	Path string
	// Op is the filesystem operation that triggered the message.
	Op fsnotify.Op
}

// Sender can receive messages (matches *tea.Program).
type Sender interface {
	Send(msg tea.Msg)
}

// Watcher monitors the drop directory via fsnotify. Dropping files into it is
// the terminal counterpart of dragging files onto the upload form.
type Watcher struct {
	w      *fsnotify.Watcher
	sender Sender
	dir    string
	exts   []string
	logger *logrus.Logger
	done   chan struct{}
}

// NewWatcher creates a watcher for dir, creating the directory if needed.
func NewWatcher(dir string, exts []string, sender Sender, logger *logrus.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		fw.Close()
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	watcher := &Watcher{
		w:      fw,
		sender: sender,
		dir:    dir,
		exts:   exts,
		logger: logger,
		done:   make(chan struct{}),
	}
	go watcher.loop()
	return watcher, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.w.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.w.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !HasAllowedExt(filepath.Base(event.Name), w.exts) {
				continue
			}
			w.sender.Send(DropDirMsg{Path: event.Name, Op: event.Op})

		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("watcher error")
		}
	}
}
