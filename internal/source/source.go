// Package source reads newline-delimited JSON records for the CLI.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/batchship/pkg/log"
)

// Record is one decoded input line. Numbers are kept as json.Number so no
// precision is lost before the dispatcher encodes them.
type Record = map[string]any

// Handler receives each decoded record. Returning an error stops reading.
type Handler func(Record) error

// scanner splits a reader into lines, keeping a trailing partial line until
// its newline arrives.
type scanner struct {
	br      *bufio.Reader
	partial []byte
	line    int
	logger  log.Logger
}

func newScanner(r io.Reader, logger log.Logger) *scanner {
	return &scanner{br: bufio.NewReader(r), logger: log.With(logger)}
}

// drain handles every complete line currently available. With final set, a
// trailing line without newline is handled too.
func (s *scanner) drain(handle Handler, final bool) error {
	for {
		chunk, err := s.br.ReadBytes('\n')
		s.partial = append(s.partial, chunk...)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("read input: %w", err)
			}
			if final && len(s.partial) > 0 {
				line := s.partial
				s.partial = nil
				return s.handle(line, handle)
			}
			return nil
		}
		line := s.partial
		s.partial = nil
		if err := s.handle(line, handle); err != nil {
			return err
		}
	}
}

func (s *scanner) handle(line []byte, handle Handler) error {
	s.line++
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		s.logger.Warn("skipping malformed record", log.Int("line", s.line), log.Err(err))
		return nil
	}
	return handle(rec)
}

// Read handles every record in r until EOF.
func Read(r io.Reader, logger log.Logger, handle Handler) error {
	return newScanner(r, logger).drain(handle, true)
}

// Follow handles every record in the file at path, then keeps handling
// records appended to it until ctx is done or the file is removed or
// renamed. idle, if set, is called after each burst of appended records.
func Follow(ctx context.Context, path string, logger log.Logger, handle Handler, idle func()) error {
	logger = log.With(logger, log.String("input", path))

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	s := newScanner(f, logger)
	burst := func(final bool) error {
		if err := s.drain(handle, final); err != nil {
			return err
		}
		if idle != nil {
			idle()
		}
		return nil
	}

	if err := burst(false); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return burst(true)

		case event, ok := <-watcher.Events:
			if !ok {
				return burst(true)
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				logger.Info("input file moved away, stopping")
				return burst(true)
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			if err := burst(false); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return burst(true)
			}
			logger.Warn("watch error", log.Err(err))
		}
	}
}
