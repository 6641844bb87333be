// Package logging builds the process logger and the per-run loggers that
// feed job output in serve mode.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rflorenc/racktables-migrator/internal/config"
)

// New returns a logger writing to w and, when cfg.File is set, appending to
// that file as well. The returned close function releases the file.
func New(cfg config.Log, w io.Writer) (*logrus.Logger, func() error, error) {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "log level %q", cfg.Level)
	}
	log.SetLevel(level)
	if cfg.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableLevelTruncation: true})
	}

	closer := func() error { return nil }
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening log file")
		}
		w = io.MultiWriter(w, f)
		closer = f.Close
	}
	log.SetOutput(w)
	return log, closer, nil
}

// ForJob returns a logger with the settings of base that also hands every
// line to sink.
func ForJob(base *logrus.Logger, sink func(string)) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(base.Out)
	log.SetFormatter(base.Formatter)
	log.SetLevel(base.GetLevel())
	log.AddHook(&lineHook{sink: sink, formatter: &logrus.TextFormatter{DisableTimestamp: true, DisableQuote: true}})
	return log
}

// lineHook renders entries as single text lines for job output.
type lineHook struct {
	sink      func(string)
	formatter logrus.Formatter
}

func (h *lineHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *lineHook) Fire(e *logrus.Entry) error {
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	h.sink(strings.TrimRight(string(b), "\n"))
	return nil
}
