// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiod

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/linuxhw/gpiod/uapi"
)

// Direction is the direction a line is configured for.
type Direction int

const (
	// DirectionInput means the line value reflects an external signal.
	DirectionInput Direction = iota + 1

	// DirectionOutput means the line drives the signal.
	DirectionOutput
)

// ActiveState is the polarity of a line: which physical level counts as
// logically active.
type ActiveState int

const (
	// ActiveHigh means a high physical level is logical 1.
	ActiveHigh ActiveState = iota + 1

	// ActiveLow means a low physical level is logical 1.
	ActiveLow
)

// Bias is a line's pull resistor configuration.
type Bias int

const (
	// BiasAsIs leaves the bias unspecified.
	BiasAsIs Bias = iota + 1

	// BiasDisable disables the internal bias.
	BiasDisable

	// BiasPullUp enables the internal pull-up.
	BiasPullUp

	// BiasPullDown enables the internal pull-down.
	BiasPullDown
)

// lineState is the local request state of a line.
type lineState int

const (
	lineFree lineState = iota
	lineRequestedValues
	lineRequestedEvents
)

var directionLabels = []string{"", "Input", "Output"}
var activeStateLabels = []string{"", "ActiveHigh", "ActiveLow"}
var biasLabels = []string{"", "AsIs", "Disable", "PullUp", "PullDown"}
var stateLabels = []string{"Free", "RequestedValues", "RequestedEvents"}

// Line is one GPIO offset on a chip. It caches the last kernel-reported
// info; the cache is refreshed only by Update or by a successful request,
// never implicitly by a getter.
type Line struct {
	chip   *Chip
	offset uint32

	// Cached kernel info, valid while upToDate holds.
	flags    uapi.LineFlag
	name     string
	consumer string
	upToDate bool

	state lineState

	// Last value driven while requested as an output.
	outputValue int

	// Request fd shared with the other lines granted in the same bulk.
	fdh *fdHandle
}

// Update re-reads the kernel's line info, refreshing the cached
// direction, polarity, bias, used/open-drain/open-source flags, name and
// consumer. On failure the cache is marked stale and left untouched.
func (l *Line) Update() error {
	li, err := getLineInfo(l.chip.fd, int(l.offset))
	if err != nil {
		l.upToDate = false
		return fmt.Errorf("gpiod: line info %s:%d: %w", l.chip.name, l.offset, err)
	}
	l.flags = li.Flags
	l.name = uapi.BytesToString(li.Name[:])
	l.consumer = uapi.BytesToString(li.Consumer[:])
	l.upToDate = true
	return nil
}

// UpToDate reports whether the cached info reflects the last successful
// kernel read. The kernel sends no invalidation, so even a fresh cache
// may lag reality until Update is called again.
func (l *Line) UpToDate() bool { return l.upToDate }

// Chip returns the chip this line belongs to.
func (l *Line) Chip() *Chip { return l.chip }

// Offset returns the line's offset within its chip.
func (l *Line) Offset() int { return int(l.offset) }

// Name returns the cached line name, or an empty string if unnamed.
func (l *Line) Name() string { return l.name }

// Consumer returns the cached consumer label of the line's current
// owner, or an empty string if unused.
func (l *Line) Consumer() string { return l.consumer }

// Direction returns the cached direction.
func (l *Line) Direction() Direction {
	if l.flags.IsOut() {
		return DirectionOutput
	}
	return DirectionInput
}

// ActiveState returns the cached polarity.
func (l *Line) ActiveState() ActiveState {
	if l.flags.IsActiveLow() {
		return ActiveLow
	}
	return ActiveHigh
}

// Bias returns the cached bias. When several bias bits are set the
// strongest wins: disable, then pull-up, then pull-down.
func (l *Line) Bias() Bias {
	switch {
	case l.flags.IsBiasDisable():
		return BiasDisable
	case l.flags.IsBiasPullUp():
		return BiasPullUp
	case l.flags.IsBiasPullDown():
		return BiasPullDown
	default:
		return BiasAsIs
	}
}

// IsUsed reports whether the line is in use by the kernel or any process,
// including this one.
func (l *Line) IsUsed() bool { return l.flags.IsKernel() }

// IsOpenDrain reports whether the line is an open-drain output.
func (l *Line) IsOpenDrain() bool { return l.flags.IsOpenDrain() }

// IsOpenSource reports whether the line is an open-source output.
func (l *Line) IsOpenSource() bool { return l.flags.IsOpenSource() }

// IsRequested reports whether this process currently owns the line.
func (l *Line) IsRequested() bool {
	return l.state == lineRequestedValues || l.state == lineRequestedEvents
}

// IsFree reports whether the line is not requested by this process.
func (l *Line) IsFree() bool { return l.state == lineFree }

// Request claims ownership of this line. See Bulk.Request.
func (l *Line) Request(config RequestConfig, defaultValue ...int) error {
	return l.bulk().Request(config, defaultValue...)
}

// Release gives up ownership of this line. See Bulk.Release.
func (l *Line) Release() error {
	return l.bulk().Release()
}

// Value reads the logical value of the line. The line must be requested.
func (l *Line) Value() (int, error) {
	values, err := l.bulk().Values()
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// SetValue drives the line to the given logical value. Any non-zero
// value drives high. The line must be requested for values.
func (l *Line) SetValue(value int) error {
	return l.bulk().SetValues(value)
}

// SetConfig changes the line's direction and flags without releasing it.
// See Bulk.SetConfig.
func (l *Line) SetConfig(direction RequestType, flags RequestFlag, values ...int) error {
	return l.bulk().SetConfig(direction, flags, values...)
}

// SetFlags changes the line's flags, keeping its direction.
func (l *Line) SetFlags(flags RequestFlag) error {
	return l.bulk().SetFlags(flags)
}

// SetDirectionInput reconfigures the line as an input.
func (l *Line) SetDirectionInput() error {
	return l.bulk().SetDirectionInput()
}

// SetDirectionOutput reconfigures the line as an output driving the
// given value.
func (l *Line) SetDirectionOutput(value int) error {
	return l.bulk().SetDirectionOutput(value)
}

// EventWait blocks until an edge event is pending on the line or the
// timeout elapses. Returns true if an event can be read. The line must
// be requested for events.
func (l *Line) EventWait(timeout time.Duration) (bool, error) {
	ready, err := l.bulk().EventWait(timeout)
	if err != nil {
		return false, err
	}
	return ready.Len() > 0, nil
}

// bulk wraps the line in a single-element Bulk for the grouped
// operations, which carry the protocol.
func (l *Line) bulk() *Bulk {
	return &Bulk{lines: []*Line{l}}
}

func (l *Line) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Offset      int    `json:"Offset"`
		Name        string `json:"Name"`
		Consumer    string `json:"Consumer"`
		Direction   string `json:"Direction"`
		ActiveState string `json:"ActiveState"`
		Bias        string `json:"Bias"`
		Used        bool   `json:"Used"`
		State       string `json:"State"`
	}{
		Offset:      l.Offset(),
		Name:        l.Name(),
		Consumer:    l.Consumer(),
		Direction:   directionLabels[l.Direction()],
		ActiveState: activeStateLabels[l.ActiveState()],
		Bias:        biasLabels[l.Bias()],
		Used:        l.IsUsed(),
		State:       stateLabels[l.state],
	})
}

// String returns the line information in JSON format.
func (l *Line) String() string {
	s, _ := json.MarshalIndent(l, "", "    ")
	return string(s)
}
