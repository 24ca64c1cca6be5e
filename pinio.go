// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiod

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"
)

// This file adapts Line and Bulk to the periph.io/x/conn/v3 interfaces
// so requested lines can be handed to any periph consumer: Line
// implements gpio.PinIO and pin.PinFunc, Bulk implements gpio.Group.
//
// The gpio.PinIn/PinOut methods cannot return rich errors everywhere, so
// like other pin implementations they log and return the zero value when
// an underlying request fails.

// Number returns the line offset. Implements pin.Pin. Note that this has
// no relationship to any board-level pin numbering scheme.
func (l *Line) Number() int {
	return int(l.offset)
}

// Function implements pin.Pin.
func (l *Line) Function() string {
	return string(l.Func())
}

// Func implements pin.PinFunc.
func (l *Line) Func() pin.Func {
	switch l.state {
	case lineRequestedValues:
		if l.Direction() == DirectionOutput {
			if l.outputValue != 0 {
				return gpio.OUT_HIGH
			}
			return gpio.OUT_LOW
		}
		fallthrough
	case lineRequestedEvents:
		if l.Read() {
			return gpio.IN_HIGH
		}
		return gpio.IN_LOW
	default:
		return pin.FuncNone
	}
}

// SupportedFuncs implements pin.PinFunc.
func (l *Line) SupportedFuncs() []pin.Func {
	return []pin.Func{gpio.IN, gpio.OUT}
}

// SetFunc implements pin.PinFunc.
func (l *Line) SetFunc(f pin.Func) error {
	switch f {
	case gpio.IN:
		return l.In(gpio.PullNoChange, gpio.NoEdge)
	case gpio.OUT_HIGH:
		return l.Out(gpio.High)
	case gpio.OUT, gpio.OUT_LOW:
		return l.Out(gpio.Low)
	default:
		return fmt.Errorf("gpiod: unsupported function %q: %w", f, ErrInvalidArg)
	}
}

// In configures the line for input. Implements gpio.PinIn.
//
// With an edge, the line is (re)requested for event monitoring; a line
// already held for values is released first, because the kernel cannot
// add event reporting to an existing handle.
func (l *Line) In(pull gpio.Pull, edge gpio.Edge) error {
	flags := pullFlags(pull)
	if edge == gpio.NoEdge {
		if l.state == lineRequestedValues {
			return l.SetConfig(RequestDirectionInput, flags)
		}
		if l.state == lineRequestedEvents {
			if err := l.Release(); err != nil {
				return err
			}
		}
		return l.Request(RequestConfig{RequestType: RequestDirectionInput, Flags: flags})
	}
	if l.IsRequested() {
		if err := l.Release(); err != nil {
			return err
		}
	}
	return l.Request(RequestConfig{RequestType: edgeRequestType(edge), Flags: flags})
}

// Out drives the line to the given level. Implements gpio.PinOut.
// A free line is requested as an output; a line held for events is
// released and re-requested.
func (l *Line) Out(level gpio.Level) error {
	v := 0
	if level {
		v = 1
	}
	switch l.state {
	case lineRequestedValues:
		if l.Direction() != DirectionOutput {
			return l.SetDirectionOutput(v)
		}
		return l.SetValue(v)
	case lineRequestedEvents:
		if err := l.Release(); err != nil {
			return err
		}
	}
	return l.Request(RequestConfig{RequestType: RequestDirectionOutput}, v)
}

// Read returns the current logical level of the line. Implements
// gpio.PinIn. A free line is first requested as an input.
func (l *Line) Read() gpio.Level {
	if l.IsFree() {
		if err := l.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			log.Println("gpiod: Line.Read():", err)
			return gpio.Low
		}
	}
	v, err := l.Value()
	if err != nil {
		log.Println("gpiod: Line.Read():", err)
		return gpio.Low
	}
	return v != 0
}

// WaitForEdge waits for an edge event on the line. The line must have
// been configured with In() and a valid edge. A timeout of 0 waits
// forever. Implements gpio.PinIn.
func (l *Line) WaitForEdge(timeout time.Duration) bool {
	if l.state != lineRequestedEvents {
		log.Println("gpiod: Line.WaitForEdge() on a line not configured for edge detection")
		return false
	}
	if timeout == 0 {
		timeout = -1
	}
	ready, err := l.EventWait(timeout)
	if err != nil || !ready {
		return false
	}
	_, err = l.EventRead()
	return err == nil
}

// Pull returns the configured bias. Implements gpio.PinIn.
func (l *Line) Pull() gpio.Pull {
	switch l.Bias() {
	case BiasPullUp:
		return gpio.PullUp
	case BiasPullDown:
		return gpio.PullDown
	case BiasDisable:
		return gpio.Float
	default:
		return gpio.PullNoChange
	}
}

// DefaultPull returns gpio.PullNoChange; the uAPI does not report a
// default. Implements gpio.PinIn.
func (l *Line) DefaultPull() gpio.Pull {
	return gpio.PullNoChange
}

// PWM is not supported; the kernel exposes PWM through a different
// device class. Implements gpio.PinOut.
func (l *Line) PWM(gpio.Duty, physic.Frequency) error {
	return errors.New("gpiod: PWM not supported on a GPIO chardev line")
}

// Halt is a no-op: a pending EventWait runs against a poll timeout and
// has no in-kernel cancellation. Implements conn.Resource.
func (l *Line) Halt() error {
	return nil
}

func pullFlags(pull gpio.Pull) RequestFlag {
	switch pull {
	case gpio.PullUp:
		return FlagBiasPullUp
	case gpio.PullDown:
		return FlagBiasPullDown
	case gpio.Float:
		return FlagBiasDisable
	default:
		return 0
	}
}

func edgeRequestType(edge gpio.Edge) RequestType {
	switch edge {
	case gpio.RisingEdge:
		return RequestEventRisingEdge
	case gpio.FallingEdge:
		return RequestEventFallingEdge
	default:
		return RequestEventBothEdges
	}
}

// Pins returns the bulk's lines as pins. Implements gpio.Group.
func (b *Bulk) Pins() []pin.Pin {
	pins := make([]pin.Pin, len(b.lines))
	for i, l := range b.lines {
		pins[i] = l
	}
	return pins
}

// ByOffset returns the line at the given position within the bulk.
// Implements gpio.Group.
func (b *Bulk) ByOffset(offset int) pin.Pin {
	if offset < 0 || offset >= len(b.lines) {
		return nil
	}
	return b.lines[offset]
}

// ByName returns the line with the given name, or nil. Implements
// gpio.Group.
func (b *Bulk) ByName(name string) pin.Pin {
	for _, l := range b.lines {
		if l.Name() == name {
			return l
		}
	}
	return nil
}

// ByNumber returns the line with the given chip offset, or nil.
// Implements gpio.Group.
func (b *Bulk) ByNumber(number int) pin.Pin {
	for _, l := range b.lines {
		if l.Number() == number {
			return l
		}
	}
	return nil
}

// Out writes bits to the bulk's lines in one kernel call. mask selects
// the lines to write; 0 means all. Unselected lines keep their held
// output value. Implements gpio.Group.
func (b *Bulk) Out(bits, mask gpio.GPIOValue) error {
	if err := b.sameChip(); err != nil {
		return err
	}
	if mask == 0 {
		mask = (1 << len(b.lines)) - 1
	}
	values := make([]int, len(b.lines))
	for i, l := range b.lines {
		if mask&(1<<i) != 0 {
			if bits&(1<<i) != 0 {
				values[i] = 1
			}
		} else {
			values[i] = l.outputValue
		}
	}
	return b.SetValues(values...)
}

// Read reads the bulk's lines in one kernel call and packs them into a
// bit set. mask selects the lines to read; 0 means all. Implements
// gpio.Group.
func (b *Bulk) Read(mask gpio.GPIOValue) (gpio.GPIOValue, error) {
	values, err := b.Values()
	if err != nil {
		return 0, err
	}
	if mask == 0 {
		mask = (1 << len(b.lines)) - 1
	}
	var bits gpio.GPIOValue
	for i, v := range values {
		if mask&(1<<i) != 0 && v != 0 {
			bits |= 1 << i
		}
	}
	return bits, nil
}

// WaitForEdge waits for an edge event on any line of the bulk and reads
// it, returning the source line's offset and the edge type. A timeout of
// 0 waits forever; an elapsed timeout fails with os.ErrDeadlineExceeded.
// Implements gpio.Group.
func (b *Bulk) WaitForEdge(timeout time.Duration) (int, gpio.Edge, error) {
	if timeout == 0 {
		timeout = -1
	}
	ready, err := b.EventWait(timeout)
	if err != nil {
		return 0, gpio.NoEdge, err
	}
	if ready.Len() == 0 {
		return 0, gpio.NoEdge, os.ErrDeadlineExceeded
	}
	l := ready.Get(0)
	ev, err := l.EventRead()
	if err != nil {
		return 0, gpio.NoEdge, err
	}
	edge := gpio.RisingEdge
	if ev.Type == FallingEdge {
		edge = gpio.FallingEdge
	}
	return l.Number(), edge, nil
}

// Halt is a no-op, as for Line.Halt. Implements conn.Resource.
func (b *Bulk) Halt() error {
	return nil
}

// Ensure the adapters keep satisfying the conn interfaces.
var _ gpio.PinIO = &Line{}
var _ gpio.PinIn = &Line{}
var _ gpio.PinOut = &Line{}
var _ pin.PinFunc = &Line{}
var _ gpio.Group = &Bulk{}
