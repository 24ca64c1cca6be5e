// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gpiod is a client for the Linux GPIO character device ABI
// (the v1 uAPI). It opens /dev/gpiochipN devices, discovers and requests
// GPIO lines, configures their direction, bias and polarity, reads and
// writes logical values, and waits for edge events.
//
// Lines of one chip may be grouped in a Bulk so that requesting, reading,
// writing and reconfiguring them happens in a single kernel transaction.
// A bulk request yields one file descriptor shared by every line granted
// together; the descriptor is closed when the last line releases it.
//
// The package is synchronous and performs no internal locking: operations
// on distinct chips or requests are independent, while concurrent use of
// the same Chip, Line or Bulk requires external synchronization by the
// caller. Only EventWait takes a timeout; every other operation is
// bounded solely by kernel latency.
//
// Requested lines also implement the periph.io/x/conn/v3 gpio.PinIO
// interfaces, and a Bulk implements gpio.Group, so they can be handed to
// any periph consumer.
package gpiod

import (
	"errors"
	"fmt"
	"os"
	"path"

	"golang.org/x/sys/unix"

	"github.com/linuxhw/gpiod/uapi"
)

var (
	// ErrNotFound indicates no chip or line matched the given name or
	// label.
	ErrNotFound = errors.New("no such device or line")

	// ErrNotCharacterDevice indicates the path is not a GPIO character
	// device.
	ErrNotCharacterDevice = errors.New("not a gpiochip character device")

	// ErrClosed indicates the chip has already been closed.
	ErrClosed = errors.New("chip already closed")

	// ErrInvalidOffset indicates a line offset outside [0, Lines()).
	ErrInvalidOffset = errors.New("line offset out of range")

	// ErrChipMismatch indicates a bulk holds lines from different chips.
	ErrChipMismatch = errors.New("lines belong to different chips")

	// ErrInvalidArg indicates a conflicting flag combination, a wrong
	// value count, or an otherwise malformed argument.
	ErrInvalidArg = errors.New("invalid argument")

	// ErrBusy indicates a line was not free when requested.
	ErrBusy = errors.New("line already requested")

	// ErrPermissionDenied indicates the operation requires a request
	// state the line is not in.
	ErrPermissionDenied = errors.New("operation not permitted in current line state")

	// ErrBulkEmpty indicates a grouped operation on an empty bulk.
	ErrBulkEmpty = errors.New("bulk holds no lines")

	// ErrBulkFull indicates a bulk already holds the maximum number of
	// lines a single kernel request can carry.
	ErrBulkFull = errors.New("bulk cannot hold more lines")
)

// The kernel boundary. Tests substitute these to stand in for the GPIO
// chardev; everything else in the package reaches the kernel only through
// them.
var (
	getChipInfo   = uapi.GetChipInfo
	getLineInfo   = uapi.GetLineInfo
	getLineHandle = uapi.GetLineHandle
	getLineEvent  = uapi.GetLineEvent
	getLineValues = uapi.GetLineValues
	setLineValues = uapi.SetLineValues
	setLineConfig = uapi.SetLineConfig
	readEvent     = uapi.ReadEvent
	pollFds       = unix.Poll
	closeFd       = unix.Close
)

// The consumer label applied to requests whose config leaves Consumer
// empty. Utilities like gpioinfo then show who holds the line.
var defaultConsumer string

func init() {
	defaultConsumer = fmt.Sprintf("%s@%d", path.Base(os.Args[0]), os.Getpid())
	if len(defaultConsumer) > uapi.NameSize-1 {
		defaultConsumer = defaultConsumer[:uapi.NameSize-1]
	}
}
