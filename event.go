// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiod

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/linuxhw/gpiod/uapi"
)

// EventType is the kind of edge that produced an event.
type EventType int

const (
	// RisingEdge is a transition from logical low to logical high.
	RisingEdge EventType = iota + 1

	// FallingEdge is a transition from logical high to logical low.
	FallingEdge
)

func (t EventType) String() string {
	switch t {
	case RisingEdge:
		return "rising"
	case FallingEdge:
		return "falling"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// LineEvent is one edge event read from a request fd.
type LineEvent struct {
	// Timestamp is the time the kernel detected the edge, on the kernel
	// monotonic clock.
	Timestamp time.Duration

	// Type is the edge that triggered the event.
	Type EventType

	// Line is the source of the event. Nil for events read directly
	// from a raw fd with ReadLineEvent.
	Line *Line
}

// EventWait blocks until an edge event is pending on at least one line
// of the bulk or the timeout elapses. Every line's request fd is
// registered for readable and priority readiness in a single poll.
//
// A negative timeout blocks indefinitely; sub-millisecond fractions are
// truncated. Returns an empty bulk on timeout, an error if the poll
// fails or reports an invalid fd, and otherwise the subset of lines
// whose fd became ready, in readiness-report order.
//
// All lines must be requested for events (ErrPermissionDenied).
func (b *Bulk) EventWait(timeout time.Duration) (*Bulk, error) {
	if err := b.sameChip(); err != nil {
		return nil, err
	}
	for _, l := range b.lines {
		if l.state != lineRequestedEvents {
			return nil, fmt.Errorf("gpiod: %s:%d not requested for events: %w",
				l.chip.name, l.offset, ErrPermissionDenied)
		}
	}

	fds := make([]unix.PollFd, len(b.lines))
	for i, l := range b.lines {
		fds[i] = unix.PollFd{Fd: int32(l.fdh.fd), Events: unix.POLLIN | unix.POLLPRI}
	}
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	n, err := pollFds(fds, ms)
	if err != nil {
		return nil, fmt.Errorf("gpiod: poll on %s: %w", b.lines[0].chip.name, err)
	}
	ready := &Bulk{}
	if n == 0 {
		return ready, nil
	}
	for i, pfd := range fds {
		if pfd.Revents&unix.POLLNVAL != 0 {
			return nil, fmt.Errorf("gpiod: poll on %s:%d: %w",
				b.lines[i].chip.name, b.lines[i].offset, unix.EINVAL)
		}
		if pfd.Revents&(unix.POLLIN|unix.POLLPRI) != 0 {
			ready.lines = append(ready.lines, b.lines[i])
		}
	}
	return ready, nil
}

// EventFd returns the raw request fd of a line requested for events,
// for callers that multiplex readiness themselves.
func (l *Line) EventFd() (int, error) {
	if l.state != lineRequestedEvents {
		return -1, fmt.Errorf("gpiod: %s:%d not requested for events: %w",
			l.chip.name, l.offset, ErrPermissionDenied)
	}
	return l.fdh.fd, nil
}

// EventRead reads exactly one edge event from the line.
//
// This blocks until an event is queued; use EventWait first for
// non-blocking behavior. The line must be requested for events.
func (l *Line) EventRead() (LineEvent, error) {
	fd, err := l.EventFd()
	if err != nil {
		return LineEvent{}, err
	}
	ev, err := ReadLineEvent(fd)
	if err != nil {
		return LineEvent{}, fmt.Errorf("gpiod: event read on %s:%d: %w", l.chip.name, l.offset, err)
	}
	ev.Line = l
	return ev, nil
}

// ReadLineEvent reads exactly one edge event record from a raw request
// fd, as obtained from EventFd. A truncated record fails with EIO.
func ReadLineEvent(fd int) (LineEvent, error) {
	ed, err := readEvent(uintptr(fd))
	if err != nil {
		return LineEvent{}, err
	}
	ev := LineEvent{Timestamp: time.Duration(ed.Timestamp)}
	switch ed.ID {
	case uapi.EventRisingEdgeID:
		ev.Type = RisingEdge
	case uapi.EventFallingEdgeID:
		ev.Type = FallingEdge
	default:
		return LineEvent{}, fmt.Errorf("gpiod: unknown event id %d: %w", ed.ID, ErrInvalidArg)
	}
	return ev, nil
}
