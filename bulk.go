// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiod

import (
	"encoding/json"
	"fmt"

	"github.com/linuxhw/gpiod/uapi"
)

// RequestType selects what a request claims the lines for: value I/O
// with a fixed direction, or edge event monitoring.
type RequestType int

const (
	// RequestDirectionAsIs claims the lines for values without changing
	// their direction.
	RequestDirectionAsIs RequestType = iota + 1

	// RequestDirectionInput claims the lines for values as inputs.
	RequestDirectionInput

	// RequestDirectionOutput claims the lines for values as outputs.
	RequestDirectionOutput

	// RequestEventFallingEdge claims the lines for falling edge events.
	RequestEventFallingEdge

	// RequestEventRisingEdge claims the lines for rising edge events.
	RequestEventRisingEdge

	// RequestEventBothEdges claims the lines for events on both edges.
	RequestEventBothEdges
)

// RequestFlag are the additional options applied by a request.
type RequestFlag uint

const (
	// FlagOpenDrain requests open-drain outputs. Only valid with
	// RequestDirectionOutput; mutually exclusive with FlagOpenSource.
	FlagOpenDrain RequestFlag = 1 << iota

	// FlagOpenSource requests open-source outputs. Only valid with
	// RequestDirectionOutput; mutually exclusive with FlagOpenDrain.
	FlagOpenSource

	// FlagActiveLow requests the lines as active low.
	FlagActiveLow

	// FlagBiasDisable requests the internal bias be disabled.
	FlagBiasDisable

	// FlagBiasPullUp requests the internal pull-up be enabled.
	FlagBiasPullUp

	// FlagBiasPullDown requests the internal pull-down be enabled.
	FlagBiasPullDown
)

// RequestConfig describes one request: who is asking, what for, and with
// which option flags.
type RequestConfig struct {
	// Consumer is the label identifying the requester, truncated to 31
	// bytes. When empty, "prog@pid" is used.
	Consumer string

	// RequestType selects direction or event monitoring.
	RequestType RequestType

	// Flags are the additional request options.
	Flags RequestFlag
}

// Bulk is an ordered group of up to 64 lines of one chip, operated on in
// a single kernel transaction. It is built ad hoc to batch an operation;
// it borrows the lines and never owns them.
type Bulk struct {
	lines []*Line
}

// NewBulk returns a Bulk holding the given lines, in order. All lines
// must belong to the same chip.
func NewBulk(lines ...*Line) (*Bulk, error) {
	b := &Bulk{}
	for _, l := range lines {
		if err := b.Append(l); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Append adds a line to the bulk. Fails with ErrChipMismatch if the line
// belongs to a different chip than the lines already held, and with
// ErrBulkFull past 64 lines.
func (b *Bulk) Append(l *Line) error {
	if l == nil {
		return fmt.Errorf("gpiod: bulk cannot hold a nil line: %w", ErrInvalidArg)
	}
	if len(b.lines) >= uapi.HandlesMax {
		return fmt.Errorf("gpiod: %w", ErrBulkFull)
	}
	if len(b.lines) > 0 && b.lines[0].chip != l.chip {
		return fmt.Errorf("gpiod: %w", ErrChipMismatch)
	}
	b.lines = append(b.lines, l)
	return nil
}

// Len returns the number of lines held.
func (b *Bulk) Len() int { return len(b.lines) }

// Get returns the line at the given position within the bulk.
func (b *Bulk) Get(i int) *Line { return b.lines[i] }

// Lines returns the held lines in order.
func (b *Bulk) Lines() []*Line { return b.lines }

// sameChip checks the bulk is non-empty and single-chip. Append already
// enforces this for bulks built through the API; Request and friends
// re-check so that hand-built bulks cannot reach the kernel.
func (b *Bulk) sameChip() error {
	if len(b.lines) == 0 {
		return fmt.Errorf("gpiod: %w", ErrBulkEmpty)
	}
	for _, l := range b.lines {
		if l == nil {
			return fmt.Errorf("gpiod: bulk cannot hold a nil line: %w", ErrInvalidArg)
		}
		if l.chip != b.lines[0].chip {
			return fmt.Errorf("gpiod: %w", ErrChipMismatch)
		}
	}
	return nil
}

func (b *Bulk) allFree() error {
	for _, l := range b.lines {
		if !l.IsFree() {
			return fmt.Errorf("gpiod: %s:%d: %w", l.chip.name, l.offset, ErrBusy)
		}
	}
	return nil
}

func (b *Bulk) allRequested() error {
	for _, l := range b.lines {
		if !l.IsRequested() {
			return fmt.Errorf("gpiod: %s:%d not requested: %w", l.chip.name, l.offset, ErrPermissionDenied)
		}
	}
	return nil
}

// translateFlags maps a request type and option flags to the kernel
// handle and event flags, validating the combinations the kernel would
// reject. The mapping is fixed; the public enums never change base.
func translateFlags(rtype RequestType, flags RequestFlag) (uapi.HandleFlag, uapi.EventFlag, error) {
	var hf uapi.HandleFlag
	var ef uapi.EventFlag

	if flags&FlagOpenDrain != 0 && flags&FlagOpenSource != 0 {
		return 0, 0, fmt.Errorf("gpiod: open-drain and open-source are mutually exclusive: %w", ErrInvalidArg)
	}
	if flags&(FlagOpenDrain|FlagOpenSource) != 0 && rtype != RequestDirectionOutput {
		return 0, 0, fmt.Errorf("gpiod: open-drain/open-source require output direction: %w", ErrInvalidArg)
	}
	biasCount := 0
	for _, f := range []RequestFlag{FlagBiasDisable, FlagBiasPullUp, FlagBiasPullDown} {
		if flags&f != 0 {
			biasCount++
		}
	}
	if biasCount > 1 {
		return 0, 0, fmt.Errorf("gpiod: bias flags are mutually exclusive: %w", ErrInvalidArg)
	}

	switch rtype {
	case RequestDirectionAsIs:
	case RequestDirectionInput:
		hf |= uapi.HandleRequestInput
	case RequestDirectionOutput:
		hf |= uapi.HandleRequestOutput
	case RequestEventFallingEdge:
		hf |= uapi.HandleRequestInput
		ef = uapi.EventRequestFallingEdge
	case RequestEventRisingEdge:
		hf |= uapi.HandleRequestInput
		ef = uapi.EventRequestRisingEdge
	case RequestEventBothEdges:
		hf |= uapi.HandleRequestInput
		ef = uapi.EventRequestBothEdges
	default:
		return 0, 0, fmt.Errorf("gpiod: unknown request type %d: %w", rtype, ErrInvalidArg)
	}

	if flags&FlagOpenDrain != 0 {
		hf |= uapi.HandleRequestOpenDrain
	}
	if flags&FlagOpenSource != 0 {
		hf |= uapi.HandleRequestOpenSource
	}
	if flags&FlagActiveLow != 0 {
		hf |= uapi.HandleRequestActiveLow
	}
	if flags&FlagBiasDisable != 0 {
		hf |= uapi.HandleRequestBiasDisable
	}
	if flags&FlagBiasPullUp != 0 {
		hf |= uapi.HandleRequestBiasPullUp
	}
	if flags&FlagBiasPullDown != 0 {
		hf |= uapi.HandleRequestBiasPullDown
	}
	return hf, ef, nil
}

func consumerBytes(consumer string) (out [uapi.NameSize]byte) {
	if consumer == "" {
		consumer = defaultConsumer
	}
	raw := []byte(consumer)
	if len(raw) > uapi.NameSize-1 {
		raw = raw[:uapi.NameSize-1]
	}
	copy(out[:], raw)
	return out
}

// Request claims ownership of every line in the bulk.
//
// For value requests the whole set is granted by one kernel transaction
// and shares one request fd. For event requests the kernel only accepts
// one line per transaction, so one ioctl is issued per line; if any of
// them fails every line already granted in this call is released first,
// so no partial grant is ever observable.
//
// defaultValues apply to output requests: one value per line, any
// non-zero value driving high. Omitted values default to low.
//
// Preconditions are checked in order before any kernel call: all lines
// on one chip (ErrChipMismatch), then all lines free (ErrBusy).
func (b *Bulk) Request(config RequestConfig, defaultValues ...int) error {
	if err := b.sameChip(); err != nil {
		return err
	}
	if err := b.allFree(); err != nil {
		return err
	}
	if len(defaultValues) != 0 && len(defaultValues) != len(b.lines) {
		return fmt.Errorf("gpiod: %d default values for %d lines: %w",
			len(defaultValues), len(b.lines), ErrInvalidArg)
	}
	hf, ef, err := translateFlags(config.RequestType, config.Flags)
	if err != nil {
		return err
	}
	if ef != 0 {
		return b.requestEvents(config, hf, ef)
	}
	return b.requestValues(config, hf, defaultValues)
}

// requestValues issues a single GET_LINEHANDLE for the whole set. The
// returned fd becomes one shared handle referenced by every line.
func (b *Bulk) requestValues(config RequestConfig, hf uapi.HandleFlag, defaultValues []int) error {
	var req uapi.HandleRequest
	req.Lines = uint32(len(b.lines))
	req.Flags = hf
	req.Consumer = consumerBytes(config.Consumer)
	for i, l := range b.lines {
		req.Offsets[i] = l.offset
	}
	if hf&uapi.HandleRequestOutput != 0 {
		for i, v := range defaultValues {
			if v != 0 {
				req.DefaultValues[i] = 1
			}
		}
	}

	if err := getLineHandle(b.lines[0].chip.fd, &req); err != nil {
		return fmt.Errorf("gpiod: line handle request on %s: %w", b.lines[0].chip.name, err)
	}

	fdh := newFdHandle(int(req.Fd))
	for i, l := range b.lines {
		fdh.incref()
		l.fdh = fdh
		l.state = lineRequestedValues
		l.outputValue = int(req.DefaultValues[i])
	}
	// The grant succeeded as a unit; if refreshing any line fails, the
	// whole set is rolled back so partial success is never observable.
	for _, l := range b.lines {
		if err := l.Update(); err != nil {
			_ = b.Release()
			return err
		}
	}
	return nil
}

// requestEvents issues one GET_LINEEVENT per line, rolling back already
// granted lines if a later one fails.
func (b *Bulk) requestEvents(config RequestConfig, hf uapi.HandleFlag, ef uapi.EventFlag) error {
	consumer := consumerBytes(config.Consumer)
	for i, l := range b.lines {
		req := uapi.EventRequest{
			Offset:      l.offset,
			HandleFlags: hf,
			EventFlags:  ef,
			Consumer:    consumer,
		}
		err := getLineEvent(l.chip.fd, &req)
		if err == nil {
			l.fdh = newFdHandle(int(req.Fd))
			l.fdh.incref()
			l.state = lineRequestedEvents
			err = l.Update()
		}
		if err != nil {
			// All-or-nothing across the set even though the kernel
			// calls are not atomic: release everything granted so far.
			granted := Bulk{lines: b.lines[:i]}
			if l.state != lineFree {
				granted.lines = b.lines[:i+1]
			}
			if granted.Len() > 0 {
				_ = granted.Release()
			}
			return fmt.Errorf("gpiod: line event request on %s:%d: %w", l.chip.name, l.offset, err)
		}
	}
	return nil
}

// Release gives up ownership of every line in the bulk. Each line
// detaches from its shared request fd, which is closed when its last
// line lets go. Lines granted in different requests each release their
// own handle; no cross-handle atomicity is implied.
func (b *Bulk) Release() error {
	if err := b.sameChip(); err != nil {
		return err
	}
	var firstErr error
	for _, l := range b.lines {
		if l.state == lineFree {
			continue
		}
		if l.fdh != nil {
			if err := l.fdh.decref(); err != nil && firstErr == nil {
				firstErr = err
			}
			l.fdh = nil
		}
		l.state = lineFree
		l.outputValue = 0
	}
	return firstErr
}

// Values reads the logical values of all lines in one kernel call,
// ordered to match the bulk. All lines must be requested.
func (b *Bulk) Values() ([]int, error) {
	if err := b.sameChip(); err != nil {
		return nil, err
	}
	if err := b.allRequested(); err != nil {
		return nil, err
	}
	var hd uapi.HandleData
	// All lines were granted together and share the fd of element 0.
	if err := getLineValues(uintptr(b.lines[0].fdh.fd), &hd); err != nil {
		return nil, fmt.Errorf("gpiod: get line values on %s: %w", b.lines[0].chip.name, err)
	}
	values := make([]int, len(b.lines))
	for i := range b.lines {
		values[i] = int(hd[i])
	}
	return values, nil
}

// SetValues drives the logical values of all lines in one kernel call.
// Any non-zero value drives high; calling with no values drives every
// line low. All lines must be requested for values.
func (b *Bulk) SetValues(values ...int) error {
	if err := b.sameChip(); err != nil {
		return err
	}
	if err := b.allRequested(); err != nil {
		return err
	}
	if len(values) != 0 && len(values) != len(b.lines) {
		return fmt.Errorf("gpiod: %d values for %d lines: %w", len(values), len(b.lines), ErrInvalidArg)
	}
	var hd uapi.HandleData
	for i, v := range values {
		if v != 0 {
			hd[i] = 1
		}
	}
	if err := setLineValues(uintptr(b.lines[0].fdh.fd), &hd); err != nil {
		return fmt.Errorf("gpiod: set line values on %s: %w", b.lines[0].chip.name, err)
	}
	for i, l := range b.lines {
		l.outputValue = int(hd[i])
	}
	return nil
}

// SetConfig changes the direction and flags of the requested lines in
// one kernel call, without releasing them. values apply when direction
// is RequestDirectionOutput, one per line, defaulting to low.
//
// Each reconfigured line has its cached info refreshed afterwards; the
// first refresh failure aborts and propagates. Lines already refreshed
// keep their new kernel-side configuration - unlike Request, SetConfig
// does not roll back.
func (b *Bulk) SetConfig(direction RequestType, flags RequestFlag, values ...int) error {
	if err := b.sameChip(); err != nil {
		return err
	}
	if err := b.allRequested(); err != nil {
		return err
	}
	switch direction {
	case RequestDirectionAsIs, RequestDirectionInput, RequestDirectionOutput:
	default:
		return fmt.Errorf("gpiod: set config accepts direction request types only: %w", ErrInvalidArg)
	}
	if len(values) != 0 && len(values) != len(b.lines) {
		return fmt.Errorf("gpiod: %d values for %d lines: %w", len(values), len(b.lines), ErrInvalidArg)
	}
	hf, _, err := translateFlags(direction, flags)
	if err != nil {
		return err
	}

	var hc uapi.HandleConfig
	hc.Flags = hf
	if hf&uapi.HandleRequestOutput != 0 {
		for i, v := range values {
			if v != 0 {
				hc.DefaultValues[i] = 1
			}
		}
	}
	if err := setLineConfig(uintptr(b.lines[0].fdh.fd), &hc); err != nil {
		return fmt.Errorf("gpiod: set line config on %s: %w", b.lines[0].chip.name, err)
	}
	for i, l := range b.lines {
		if hf&uapi.HandleRequestOutput != 0 {
			l.outputValue = int(hc.DefaultValues[i])
		}
		if err := l.Update(); err != nil {
			return err
		}
	}
	return nil
}

// SetFlags changes the flags of the requested lines, keeping their
// direction.
func (b *Bulk) SetFlags(flags RequestFlag) error {
	return b.SetConfig(RequestDirectionAsIs, flags)
}

// SetDirectionInput reconfigures the requested lines as inputs.
func (b *Bulk) SetDirectionInput() error {
	return b.SetConfig(RequestDirectionInput, 0)
}

// SetDirectionOutput reconfigures the requested lines as outputs driving
// the given values.
func (b *Bulk) SetDirectionOutput(values ...int) error {
	return b.SetConfig(RequestDirectionOutput, 0, values...)
}

func (b *Bulk) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Lines []*Line `json:"Lines"`
	}{Lines: b.lines})
}

// String returns the bulk information, line by line, in JSON format.
func (b *Bulk) String() string {
	s, _ := json.MarshalIndent(b, "", "    ")
	return string(s)
}
