// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiod

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// chipPaths returns the device paths of all GPIO chips on the system,
// sorted for a deterministic visit order.
func chipPaths() ([]string, error) {
	f, err := os.Open(devDir)
	if err != nil {
		return nil, fmt.Errorf("gpiod: open %s: %w", devDir, err)
	}
	defer f.Close()
	entries, err := f.Readdirnames(-1)
	if err != nil {
		return nil, fmt.Errorf("gpiod: scan %s: %w", devDir, err)
	}
	var paths []string
	for _, name := range entries {
		if strings.HasPrefix(name, "gpiochip") {
			paths = append(paths, filepath.Join(devDir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// ChipIter iterates over every GPIO chip on the system. All chips are
// opened eagerly at construction; if any open fails the chips already
// opened are closed and construction fails entirely.
//
// The iterator owns the chips it yields: each Next closes the previously
// yielded chip. Callers that keep a chip beyond one step must advance
// with NextNoClose and close the chip themselves.
type ChipIter struct {
	chips  []*Chip
	offset int

	// The chip yielded by the last Next, still owned by the iterator.
	prev *Chip
}

// NewChipIter opens every chip on the system and returns an iterator
// over them. Fails with ErrNotFound if there are none.
func NewChipIter() (*ChipIter, error) {
	paths, err := chipPaths()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("gpiod: no gpiochip devices in %s: %w", devDir, ErrNotFound)
	}
	it := &ChipIter{chips: make([]*Chip, 0, len(paths))}
	for _, p := range paths {
		c, err := OpenChip(p)
		if err != nil {
			for _, opened := range it.chips {
				_ = opened.Close()
			}
			return nil, err
		}
		it.chips = append(it.chips, c)
	}
	return it, nil
}

// Next returns the next chip, closing the previously yielded one, or
// nil when the iterator is exhausted.
func (it *ChipIter) Next() *Chip {
	if it.prev != nil {
		_ = it.prev.Close()
	}
	it.prev = it.NextNoClose()
	return it.prev
}

// NextNoClose returns the next chip without closing the previously
// yielded one, or nil when the iterator is exhausted. Ownership of the
// returned chip passes to the caller.
func (it *ChipIter) NextNoClose() *Chip {
	if it.offset >= len(it.chips) {
		return nil
	}
	c := it.chips[it.offset]
	it.chips[it.offset] = nil
	it.offset++
	return c
}

// Close closes every chip the iterator still owns. Safe to call after
// partial iteration or exhaustion.
func (it *ChipIter) Close() error {
	var firstErr error
	if it.prev != nil && !it.prev.closed {
		firstErr = it.prev.Close()
	}
	it.prev = nil
	for i, c := range it.chips {
		if c == nil || c.closed {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		it.chips[i] = nil
	}
	return firstErr
}

// FindLine searches every chip on the system for a line with the given
// name. The chip owning the returned line is left open for the caller
// to close via Line.Chip; all other chips are closed. Fails with
// ErrNotFound if no line matches.
func FindLine(name string) (*Line, error) {
	it, err := NewChipIter()
	if err != nil {
		return nil, err
	}
	for c := it.NextNoClose(); c != nil; c = it.NextNoClose() {
		l, err := c.FindLine(name)
		if err == nil {
			_ = it.Close()
			return l, nil
		}
		_ = c.Close()
	}
	return nil, fmt.Errorf("gpiod: no line named %q on any chip: %w", name, ErrNotFound)
}
