// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build linux

// Package uapi provides the Linux GPIO character device uAPI (v1)
// definitions: the ioctl request codes, the binary structures exchanged
// with the kernel, and thin wrappers around the ioctl and read syscalls.
//
// The structures here must match include/uapi/linux/gpio.h bit for bit.
// A mismatch changes the encoded ioctl number and the kernel rejects the
// call with ENOTTY or EINVAL.
package uapi

import (
	"bytes"
	"unsafe"

	"golang.org/x/sys/unix"
)

// From asm-generic/ioctl.h. The ioctl number packs the command number,
// the type magic, the payload size and the transfer direction into 32
// bits: 8 nr bits, 8 type bits, 14 size bits and 2 direction bits.
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

type ioctl uintptr

func ioc(dir, typ, nr, size uintptr) ioctl {
	return ioctl(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNrShift | size<<iocSizeShift)
}

func ior(typ, nr, size uintptr) ioctl {
	return ioc(iocRead, typ, nr, size)
}

func iorw(typ, nr, size uintptr) ioctl {
	return ioc(iocRead|iocWrite, typ, nr, size)
}

// NameSize is the size of the name and consumer strings in the uAPI
// structures, including the terminating NUL.
const NameSize = 32

// HandlesMax is the maximum number of lines that can be granted by a
// single handle request.
const HandlesMax = 64

var (
	getChipInfoIoctl   ioctl
	getLineInfoIoctl   ioctl
	getLineHandleIoctl ioctl
	getLineEventIoctl  ioctl
	getLineValuesIoctl ioctl
	setLineValuesIoctl ioctl
	setLineConfigIoctl ioctl
)

func init() {
	// The encoded numbers depend on struct sizes, which are only
	// available at runtime.
	var ci ChipInfo
	getChipInfoIoctl = ior(0xB4, 0x01, unsafe.Sizeof(ci))
	var li LineInfo
	getLineInfoIoctl = iorw(0xB4, 0x02, unsafe.Sizeof(li))
	var hr HandleRequest
	getLineHandleIoctl = iorw(0xB4, 0x03, unsafe.Sizeof(hr))
	var er EventRequest
	getLineEventIoctl = iorw(0xB4, 0x04, unsafe.Sizeof(er))
	var hd HandleData
	getLineValuesIoctl = iorw(0xB4, 0x08, unsafe.Sizeof(hd))
	setLineValuesIoctl = iorw(0xB4, 0x09, unsafe.Sizeof(hd))
	var hc HandleConfig
	setLineConfigIoctl = iorw(0xB4, 0x0A, unsafe.Sizeof(hc))
}

// ChipInfo contains the details of a GPIO chip.
type ChipInfo struct {
	// The system name of the chip.
	Name [NameSize]byte

	// An identifying label added by the device driver.
	Label [NameSize]byte

	// The number of lines exposed by this chip.
	Lines uint32
}

// LineInfo contains the details of a single line of a GPIO chip.
type LineInfo struct {
	// The offset of the line within the chip.
	Offset uint32

	// The line flags currently applied to the line.
	Flags LineFlag

	// The system name for this line.
	Name [NameSize]byte

	// The consumer label applied by the current owner of the line,
	// if any.
	Consumer [NameSize]byte
}

// LineFlag are the GPIOLINE_FLAG bits reported by GET_LINEINFO.
type LineFlag uint32

const (
	// LineFlagKernel indicates the line is in use by the kernel or by
	// another process.
	LineFlagKernel LineFlag = 1 << iota

	// LineFlagIsOut indicates the line is an output.
	LineFlagIsOut

	// LineFlagActiveLow indicates the line is active low.
	LineFlagActiveLow

	// LineFlagOpenDrain indicates the line is an open-drain output.
	LineFlagOpenDrain

	// LineFlagOpenSource indicates the line is an open-source output.
	LineFlagOpenSource

	// LineFlagBiasPullUp indicates the internal pull-up is enabled.
	LineFlagBiasPullUp

	// LineFlagBiasPullDown indicates the internal pull-down is enabled.
	LineFlagBiasPullDown

	// LineFlagBiasDisable indicates the internal bias is disabled.
	LineFlagBiasDisable
)

// IsKernel returns true if the line is in use and unavailable for request.
func (f LineFlag) IsKernel() bool { return f&LineFlagKernel != 0 }

// IsOut returns true if the line is an output.
func (f LineFlag) IsOut() bool { return f&LineFlagIsOut != 0 }

// IsActiveLow returns true if the line is active low.
func (f LineFlag) IsActiveLow() bool { return f&LineFlagActiveLow != 0 }

// IsOpenDrain returns true if the line is an open-drain output.
func (f LineFlag) IsOpenDrain() bool { return f&LineFlagOpenDrain != 0 }

// IsOpenSource returns true if the line is an open-source output.
func (f LineFlag) IsOpenSource() bool { return f&LineFlagOpenSource != 0 }

// IsBiasPullUp returns true if the pull-up is enabled.
func (f LineFlag) IsBiasPullUp() bool { return f&LineFlagBiasPullUp != 0 }

// IsBiasPullDown returns true if the pull-down is enabled.
func (f LineFlag) IsBiasPullDown() bool { return f&LineFlagBiasPullDown != 0 }

// IsBiasDisable returns true if the bias is disabled.
func (f LineFlag) IsBiasDisable() bool { return f&LineFlagBiasDisable != 0 }

// HandleRequest is a request for control of a set of lines.
// The lines must all belong to the same GPIO chip.
type HandleRequest struct {
	// The lines to be requested.
	Offsets [HandlesMax]uint32

	// The flags to be applied to the lines.
	Flags HandleFlag

	// The initial values for output lines.
	DefaultValues [HandlesMax]uint8

	// The string identifying the requester.
	Consumer [NameSize]byte

	// The number of lines being requested.
	Lines uint32

	// The fd for the granted lines, set by the kernel on success.
	Fd int32
}

// HandleFlag are the GPIOHANDLE_REQUEST flags.
type HandleFlag uint32

const (
	// HandleRequestInput requests the lines as inputs.
	HandleRequestInput HandleFlag = 1 << iota

	// HandleRequestOutput requests the lines as outputs.
	// Takes precedence over HandleRequestInput if both are set.
	HandleRequestOutput

	// HandleRequestActiveLow requests the lines as active low.
	HandleRequestActiveLow

	// HandleRequestOpenDrain requests the lines as open drain.
	// Requires output; mutually exclusive with open source.
	HandleRequestOpenDrain

	// HandleRequestOpenSource requests the lines as open source.
	// Requires output; mutually exclusive with open drain.
	HandleRequestOpenSource

	// HandleRequestBiasPullUp requests the pull-up be enabled.
	HandleRequestBiasPullUp

	// HandleRequestBiasPullDown requests the pull-down be enabled.
	HandleRequestBiasPullDown

	// HandleRequestBiasDisable requests the bias be disabled.
	HandleRequestBiasDisable
)

// HandleConfig changes the configuration of an existing request without
// releasing it. Issued on the request fd, not the chip fd.
type HandleConfig struct {
	// The flags to be applied to the lines.
	Flags HandleFlag

	// The values applied to output lines when the new flags include
	// HandleRequestOutput.
	DefaultValues [HandlesMax]uint8

	// reserved for future use.
	Padding [4]uint32
}

// HandleData holds the logical value for each line of a request.
// Zero is low, any other value is high.
type HandleData [HandlesMax]uint8

// EventRequest is a request for control of a single line with edge event
// reporting enabled. The uAPI v1 event request is single-line only.
type EventRequest struct {
	// The line to be requested.
	Offset uint32

	// The handle flags applied to the line.
	HandleFlags HandleFlag

	// The type of edges to report.
	EventFlags EventFlag

	// The string identifying the requester.
	Consumer [NameSize]byte

	// The fd for the granted line, set by the kernel on success.
	Fd int32
}

// EventFlag selects the edges reported by an event request.
type EventFlag uint32

const (
	// EventRequestRisingEdge requests events on rising edges of the
	// logical value.
	EventRequestRisingEdge EventFlag = 1 << iota

	// EventRequestFallingEdge requests events on falling edges of the
	// logical value.
	EventRequestFallingEdge

	// EventRequestBothEdges requests events on both edges.
	EventRequestBothEdges = EventRequestRisingEdge | EventRequestFallingEdge
)

// Edge event identifiers carried in EventData.ID.
const (
	// EventRisingEdgeID identifies a rising edge event.
	EventRisingEdgeID uint32 = 1

	// EventFallingEdgeID identifies a falling edge event.
	EventFallingEdgeID uint32 = 2
)

// GetChipInfo returns the ChipInfo for a GPIO character device.
//
// The fd is an open GPIO character device.
func GetChipInfo(fd uintptr) (ChipInfo, error) {
	var ci ChipInfo
	_, _, errno := unix.Syscall(unix.SYS_IOCTL,
		fd,
		uintptr(getChipInfoIoctl),
		uintptr(unsafe.Pointer(&ci)))
	if errno != 0 {
		return ci, errno
	}
	return ci, nil
}

// GetLineInfo returns the LineInfo for one line of a GPIO character
// device. The offset is zero based.
func GetLineInfo(fd uintptr, offset int) (LineInfo, error) {
	var li LineInfo
	li.Offset = uint32(offset)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL,
		fd,
		uintptr(getLineInfoIoctl),
		uintptr(unsafe.Pointer(&li)))
	if errno != 0 {
		return LineInfo{}, errno
	}
	return li, nil
}

// GetLineHandle requests a set of lines from the GPIO character device
// in a single kernel transaction, without event reporting.
//
// The lines must not already be requested. On success the fd for the
// granted lines is returned in request.Fd.
func GetLineHandle(fd uintptr, request *HandleRequest) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL,
		fd,
		uintptr(getLineHandleIoctl),
		uintptr(unsafe.Pointer(request)))
	if errno != 0 {
		return errno
	}
	return nil
}

// GetLineEvent requests a single line from the GPIO character device
// with edge event reporting enabled.
//
// On success the fd for the granted line is returned in request.Fd.
func GetLineEvent(fd uintptr, request *EventRequest) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL,
		fd,
		uintptr(getLineEventIoctl),
		uintptr(unsafe.Pointer(request)))
	if errno != 0 {
		return errno
	}
	return nil
}

// GetLineValues reads the logical values of a set of requested lines.
//
// The fd is a request fd, as returned by GetLineHandle or GetLineEvent.
func GetLineValues(fd uintptr, values *HandleData) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL,
		fd,
		uintptr(getLineValuesIoctl),
		uintptr(unsafe.Pointer(&values[0])))
	if errno != 0 {
		return errno
	}
	return nil
}

// SetLineValues sets the logical values of a set of requested lines.
//
// The fd is a request fd, as returned by GetLineHandle.
func SetLineValues(fd uintptr, values *HandleData) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL,
		fd,
		uintptr(setLineValuesIoctl),
		uintptr(unsafe.Pointer(&values[0])))
	if errno != 0 {
		return errno
	}
	return nil
}

// SetLineConfig changes the configuration of an existing handle request
// without releasing it.
func SetLineConfig(fd uintptr, config *HandleConfig) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL,
		fd,
		uintptr(setLineConfigIoctl),
		uintptr(unsafe.Pointer(config)))
	if errno != 0 {
		return errno
	}
	return nil
}

// ReadEvent reads a single edge event record from a request fd.
//
// This blocks until an event is queued, so callers needing non-blocking
// behavior must check fd readiness first. A truncated record is reported
// as EIO.
func ReadEvent(fd uintptr) (EventData, error) {
	var ed EventData
	buf := make([]byte, unsafe.Sizeof(ed))
	n, err := unix.Read(int(fd), buf)
	if err != nil {
		return EventData{}, err
	}
	if n != len(buf) {
		return EventData{}, unix.EIO
	}
	ed.Timestamp = nativeEndian.Uint64(buf[0:8])
	ed.ID = nativeEndian.Uint32(buf[8:12])
	return ed, nil
}

// BytesToString converts a NUL-terminated byte array, as found in the
// uAPI structures, to a string.
func BytesToString(a []byte) string {
	n := bytes.IndexByte(a, 0)
	if n == -1 {
		return string(a)
	}
	return string(a[:n])
}
