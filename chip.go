// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiod

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/linuxhw/gpiod/uapi"
)

// Filesystem roots for device nodes and the sysfs attributes used to
// validate them. Package variables so tests can point them elsewhere.
var (
	devDir       = "/dev"
	sysfsGpioDir = "/sys/bus/gpio/devices"
)

// Chip is an open GPIO character device. It exclusively owns the device
// fd and the Line handles created from it.
type Chip struct {
	f  *os.File
	fd uintptr

	name      string
	label     string
	lineCount int

	// One slot per offset, filled lazily by Line().
	lines []*Line

	closed bool
}

// OpenChip opens the GPIO character device at path.
//
// The path must be a character special file whose major:minor numbers
// match the corresponding /sys/bus/gpio/devices attribute; anything else
// fails with ErrNotCharacterDevice wrapping ENOTTY or ENODEV. No partial
// chip is ever returned: any failure closes the fd.
func OpenChip(path string) (*Chip, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("gpiod: open %s: %w", path, err)
	}
	if err = isGpiochipCdev(path, f); err != nil {
		_ = f.Close()
		return nil, err
	}
	ci, err := getChipInfo(f.Fd())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("gpiod: chip info %s: %w", path, err)
	}
	c := &Chip{
		f:         f,
		fd:        f.Fd(),
		name:      uapi.BytesToString(ci.Name[:]),
		label:     uapi.BytesToString(ci.Label[:]),
		lineCount: int(ci.Lines),
		lines:     make([]*Line, ci.Lines),
	}
	if c.label == "" {
		c.label = "unknown"
	}
	return c, nil
}

// isGpiochipCdev verifies that an open file is really a gpiochip
// character device and not some other file that happened to open.
func isGpiochipCdev(path string, f *os.File) error {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return fmt.Errorf("gpiod: stat %s: %w", path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		// ioctl on a non-cdev fd would fail with ENOTTY; report the
		// same without touching the kernel.
		return fmt.Errorf("gpiod: %s: %w: %w", path, ErrNotCharacterDevice, unix.ENOTTY)
	}
	sysfsp := filepath.Join(sysfsGpioDir, filepath.Base(path), "dev")
	raw, err := os.ReadFile(sysfsp)
	if err != nil {
		// A character device, but not a gpiochip.
		return fmt.Errorf("gpiod: %s: %w: %w", path, ErrNotCharacterDevice, unix.ENOTTY)
	}
	rdev := uint64(st.Rdev)
	devstr := fmt.Sprintf("%d:%d", unix.Major(rdev), unix.Minor(rdev))
	if strings.TrimSpace(string(raw)) != devstr {
		return fmt.Errorf("gpiod: %s: %w: %w", path, ErrNotCharacterDevice, unix.ENODEV)
	}
	return nil
}

// OpenChipByName opens the chip with the given device name, e.g.
// "gpiochip0".
func OpenChipByName(name string) (*Chip, error) {
	return OpenChip(filepath.Join(devDir, name))
}

// OpenChipByNumber opens /dev/gpiochipN.
func OpenChipByNumber(num int) (*Chip, error) {
	return OpenChip(filepath.Join(devDir, fmt.Sprintf("gpiochip%d", num)))
}

// OpenChipByLabel scans all chips on the system and opens the first one
// whose driver label matches. Fails with ErrNotFound wrapping ENOENT if
// no chip carries the label.
func OpenChipByLabel(label string) (*Chip, error) {
	paths, err := chipPaths()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		c, err := OpenChip(p)
		if err != nil {
			return nil, err
		}
		if c.Label() == label {
			return c, nil
		}
		_ = c.Close()
	}
	return nil, fmt.Errorf("gpiod: no chip labeled %q: %w: %w", label, ErrNotFound, unix.ENOENT)
}

// OpenChipLookup opens a chip based on the best guess of what the
// description is: a numeric string is tried as a chip number, then the
// string is tried as a label, and finally as a path (when it starts with
// "/dev/") or a device name.
func OpenChipLookup(descr string) (*Chip, error) {
	if num, err := strconv.Atoi(descr); err == nil {
		return OpenChipByNumber(num)
	}
	c, err := OpenChipByLabel(descr)
	if err == nil {
		return c, nil
	}
	if strings.HasPrefix(descr, "/dev/") {
		return OpenChip(descr)
	}
	return OpenChipByName(descr)
}

// Name returns the chip name as reported by the kernel.
func (c *Chip) Name() string { return c.name }

// Label returns the driver label, or "unknown" when the kernel reports
// none.
func (c *Chip) Label() string { return c.label }

// Lines returns the number of lines exposed by the chip.
func (c *Chip) Lines() int { return c.lineCount }

// Line returns the line at the given offset.
//
// The Line handle is created on first use and cached, so repeated calls
// for the same offset return the same handle. The handle's kernel info
// is refreshed before it is returned.
func (c *Chip) Line(offset int) (*Line, error) {
	if c.closed {
		return nil, fmt.Errorf("gpiod: %s: %w", c.name, ErrClosed)
	}
	if offset < 0 || offset >= c.lineCount {
		return nil, fmt.Errorf("gpiod: %s offset %d: %w", c.name, offset, ErrInvalidOffset)
	}
	if c.lines[offset] == nil {
		c.lines[offset] = &Line{chip: c, offset: uint32(offset)}
	}
	l := c.lines[offset]
	if err := l.Update(); err != nil {
		return nil, err
	}
	return l, nil
}

// FindLine returns the line with the given name, scanning every line of
// the chip. Fails with ErrNotFound if no line carries the name.
func (c *Chip) FindLine(name string) (*Line, error) {
	for offset := 0; offset < c.lineCount; offset++ {
		l, err := c.Line(offset)
		if err != nil {
			return nil, err
		}
		if l.Name() == name {
			return l, nil
		}
	}
	return nil, fmt.Errorf("gpiod: %s has no line named %q: %w", c.name, name, ErrNotFound)
}

// GetLines returns a Bulk holding the lines at the given offsets, in
// order. Any lookup failure fails the whole call.
func (c *Chip) GetLines(offsets ...int) (*Bulk, error) {
	b := &Bulk{}
	for _, offset := range offsets {
		l, err := c.Line(offset)
		if err != nil {
			return nil, err
		}
		if err = b.Append(l); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// AllLines returns a Bulk holding every line of the chip. Any failure
// yields no lines rather than a partial set.
func (c *Chip) AllLines() (*Bulk, error) {
	offsets := make([]int, c.lineCount)
	for i := range offsets {
		offsets[i] = i
	}
	return c.GetLines(offsets...)
}

// FindLines returns a Bulk holding the named lines, in order. If any
// name is missing the whole call fails with ErrNotFound.
func (c *Chip) FindLines(names ...string) (*Bulk, error) {
	b := &Bulk{}
	for _, name := range names {
		l, err := c.FindLine(name)
		if err != nil {
			return nil, err
		}
		if err = b.Append(l); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Close releases every line still requested on this chip and closes the
// device fd. Outstanding Line handles stay readable as cached data but
// are invalid for further kernel operations.
func (c *Chip) Close() error {
	if c.closed {
		return fmt.Errorf("gpiod: %s: %w", c.name, ErrClosed)
	}
	c.closed = true
	var firstErr error
	for _, l := range c.lines {
		if l == nil || l.IsFree() {
			continue
		}
		if err := l.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.f != nil {
		if err := c.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Chip) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name  string `json:"Name"`
		Label string `json:"Label"`
		Lines int    `json:"Lines"`
	}{
		Name:  c.Name(),
		Label: c.Label(),
		Lines: c.Lines(),
	})
}

// String returns the chip information in JSON format.
func (c *Chip) String() string {
	s, _ := json.MarshalIndent(c, "", "    ")
	return string(s)
}
