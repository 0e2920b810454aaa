package assetd

import (
	"github.com/mwantia/assetd/archive"
	"github.com/mwantia/assetd/data"
	"github.com/mwantia/assetd/journal"
	"github.com/mwantia/assetd/log"
	"github.com/mwantia/assetd/metrics"
)

type StoreOptions struct {
	LogLevel      log.LogLevel
	LogFile       string
	NoTerminalLog bool

	Classifier data.TempClassifier
	Metrics    *metrics.Registry
	Journal    journal.Backend
	Archiver   archive.Archiver
}

type StoreOption func(*StoreOptions) error

func newDefaultStoreOptions() *StoreOptions {
	return &StoreOptions{
		LogLevel:   log.Info,
		Classifier: data.PrefixClassifier(data.DefaultTempPrefix),
	}
}

func WithLogLevel(logLevel log.LogLevel) StoreOption {
	return func(opts *StoreOptions) error {
		opts.LogLevel = logLevel
		return nil
	}
}

func WithLogFile(logFile string) StoreOption {
	return func(opts *StoreOptions) error {
		opts.LogFile = logFile
		return nil
	}
}

func WithoutTerminalLog() StoreOption {
	return func(opts *StoreOptions) error {
		opts.NoTerminalLog = true
		return nil
	}
}

// WithTempPrefix sets the filename prefix marking temporary image entries.
func WithTempPrefix(prefix string) StoreOption {
	return func(opts *StoreOptions) error {
		opts.Classifier = data.PrefixClassifier(prefix)
		return nil
	}
}

// WithTempClassifier replaces the temporary-image convention entirely.
func WithTempClassifier(classifier data.TempClassifier) StoreOption {
	return func(opts *StoreOptions) error {
		opts.Classifier = classifier
		return nil
	}
}

// WithMetrics shares an existing metric registry instead of creating one.
func WithMetrics(registry *metrics.Registry) StoreOption {
	return func(opts *StoreOptions) error {
		opts.Metrics = registry
		return nil
	}
}

// WithJournal records every mutation to the given journal backend.
func WithJournal(backend journal.Backend) StoreOption {
	return func(opts *StoreOptions) error {
		opts.Journal = backend
		return nil
	}
}

// WithArchiver archives resource content to the given archiver before any
// delete removes it from disk.
func WithArchiver(archiver archive.Archiver) StoreOption {
	return func(opts *StoreOptions) error {
		opts.Archiver = archiver
		return nil
	}
}
