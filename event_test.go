// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiod

import (
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/sys/unix"

	"github.com/linuxhw/gpiod/uapi"
)

// eventPipe returns a pipe whose read end stands in for an event request
// fd. Writing records to w makes the fd poll readable, exactly like the
// kernel queueing an edge event.
func eventPipe(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

// writeEvent writes one kernel-layout event record to the fd.
func writeEvent(t *testing.T, fd int, ed uapi.EventData) {
	t.Helper()
	buf := (*[unsafe.Sizeof(uapi.EventData{})]byte)(unsafe.Pointer(&ed))[:]
	n, err := unix.Write(fd, buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
}

// eventLine builds a line in the requested-for-events state backed by
// the given fd.
func eventLine(c *Chip, offset int, fd int) *Line {
	h := newFdHandle(fd)
	h.incref()
	return &Line{chip: c, offset: uint32(offset), state: lineRequestedEvents, fdh: h}
}

func TestEventWaitTimeout(t *testing.T) {
	r, _ := eventPipe(t)
	c := newTestChip("gpiochip0", 4)
	l := eventLine(c, 1, r)

	start := time.Now()
	ready, err := l.bulk().EventWait(10 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 0, ready.Len())
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestEventWaitReady(t *testing.T) {
	r1, _ := eventPipe(t)
	r2, w2 := eventPipe(t)
	c := newTestChip("gpiochip0", 4)
	l1 := eventLine(c, 1, r1)
	l2 := eventLine(c, 2, r2)
	b := &Bulk{lines: []*Line{l1, l2}}

	writeEvent(t, w2, uapi.EventData{Timestamp: 1, ID: uapi.EventRisingEdgeID})

	ready, err := b.EventWait(time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, ready.Len())
	assert.Same(t, l2, ready.Get(0))
}

func TestEventWaitNotRequested(t *testing.T) {
	patchKernel(t)
	pollCalls := 0
	pollFds = func(fds []unix.PollFd, timeout int) (int, error) {
		pollCalls++
		return 0, nil
	}
	c := newTestChip("gpiochip0", 4)
	b := &Bulk{lines: []*Line{{chip: c, offset: 1, state: lineRequestedValues}}}

	_, err := b.EventWait(time.Second)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, 0, pollCalls)
}

func TestEventWaitBadFd(t *testing.T) {
	c := newTestChip("gpiochip0", 4)
	// A closed fd; poll reports POLLNVAL for it.
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	unix.Close(fds[0])
	unix.Close(fds[1])
	l := eventLine(c, 1, fds[0])

	_, err := l.bulk().EventWait(10 * time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.EINVAL)
}

func TestEventReadRoundTrip(t *testing.T) {
	r, w := eventPipe(t)
	c := newTestChip("gpiochip0", 4)
	l := eventLine(c, 1, r)

	writeEvent(t, w, uapi.EventData{Timestamp: 1234567890, ID: uapi.EventFallingEdgeID})

	ok, err := l.EventWait(time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ev, err := l.EventRead()
	require.NoError(t, err)
	assert.Equal(t, FallingEdge, ev.Type)
	assert.Equal(t, time.Duration(1234567890), ev.Timestamp)
	assert.Same(t, l, ev.Line)
}

func TestEventReadSequence(t *testing.T) {
	r, w := eventPipe(t)
	c := newTestChip("gpiochip0", 4)
	l := eventLine(c, 1, r)

	writeEvent(t, w, uapi.EventData{Timestamp: 100, ID: uapi.EventRisingEdgeID})
	writeEvent(t, w, uapi.EventData{Timestamp: 200, ID: uapi.EventFallingEdgeID})

	// Queued events are drained one record per read, in order.
	ev, err := l.EventRead()
	require.NoError(t, err)
	assert.Equal(t, RisingEdge, ev.Type)
	assert.Equal(t, time.Duration(100), ev.Timestamp)

	ev, err = l.EventRead()
	require.NoError(t, err)
	assert.Equal(t, FallingEdge, ev.Type)
	assert.Equal(t, time.Duration(200), ev.Timestamp)
}

func TestEventFd(t *testing.T) {
	r, _ := eventPipe(t)
	c := newTestChip("gpiochip0", 4)
	l := eventLine(c, 1, r)

	fd, err := l.EventFd()
	require.NoError(t, err)
	assert.Equal(t, r, fd)

	free := &Line{chip: c, offset: 2}
	_, err = free.EventFd()
	assert.ErrorIs(t, err, ErrPermissionDenied)

	values := &Line{chip: c, offset: 3, state: lineRequestedValues}
	_, err = values.EventFd()
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestReadLineEventUnknownID(t *testing.T) {
	patchKernel(t)
	readEvent = func(fd uintptr) (uapi.EventData, error) {
		return uapi.EventData{Timestamp: 1, ID: 7}, nil
	}
	_, err := ReadLineEvent(3)
	assert.ErrorIs(t, err, ErrInvalidArg)
}

func TestReadEventTruncatedRecord(t *testing.T) {
	r, w := eventPipe(t)
	_, err := unix.Write(w, []byte{1, 2, 3})
	require.NoError(t, err)

	_, err = ReadLineEvent(r)
	assert.ErrorIs(t, err, unix.EIO)
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "rising", RisingEdge.String())
	assert.Equal(t, "falling", FallingEdge.String())
	assert.Equal(t, "EventType(9)", EventType(9).String())
}
