package main

import (
	"io"

	"go.uber.org/zap"

	"nerdbook/internal/config"
	"nerdbook/internal/console"
	"nerdbook/internal/journal"
	"nerdbook/internal/kernel"
	"nerdbook/internal/notebook"
)

// session is a notebook plus the resources it was opened with.
type session struct {
	nb      *notebook.Notebook
	journal *journal.Store
}

// openSession builds the kernel and notebook for c. Console lines are echoed
// to echo when it is non-nil and echo_console is set. The journal is attached
// when enabled; failing to open it only disables recording.
func openSession(c *config.Config, echo io.Writer, opts ...notebook.Option) (*session, error) {
	var out io.Writer
	if c.Kernel.EchoConsole {
		out = echo
	}
	con := console.New(out)
	warn := func(w *kernel.ExtractionWarning) {
		logger.Warn("Variable extraction failed", zap.Strings("names", w.Names), zap.Error(w.Cause))
	}
	k, err := notebook.NewKernel(c.Kernel, con, warn)
	if err != nil {
		return nil, err
	}

	s := &session{}
	opts = append(newNotebookOptions(c), opts...)
	if c.Journal.Enabled {
		path := c.JournalPath(workspace)
		store, err := journal.Open(path)
		if err != nil {
			logger.Warn("Journal unavailable", zap.String("path", path), zap.Error(err))
		} else {
			s.journal = store
			opts = append(opts, notebook.WithRecorder(store))
		}
	}
	s.nb = notebook.New(k, opts...)
	return s, nil
}

// Close releases the journal.
func (s *session) Close() {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			logger.Warn("Failed to close journal", zap.Error(err))
		}
	}
}
