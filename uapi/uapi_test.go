// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build linux

package uapi

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

// The encoded ioctl numbers must match linux/gpio.h exactly; these are
// the values the v1 uAPI has carried since kernel 4.8 (SET_CONFIG since
// 5.5). They are identical on 32- and 64-bit ABIs because every struct
// field has a fixed size.
func TestIoctlCodes(t *testing.T) {
	tests := []struct {
		name string
		got  ioctl
		want uintptr
	}{
		{"GPIO_GET_CHIPINFO_IOCTL", getChipInfoIoctl, 0x8044B401},
		{"GPIO_GET_LINEINFO_IOCTL", getLineInfoIoctl, 0xC048B402},
		{"GPIO_GET_LINEHANDLE_IOCTL", getLineHandleIoctl, 0xC16CB403},
		{"GPIO_GET_LINEEVENT_IOCTL", getLineEventIoctl, 0xC030B404},
		{"GPIOHANDLE_GET_LINE_VALUES_IOCTL", getLineValuesIoctl, 0xC040B408},
		{"GPIOHANDLE_SET_LINE_VALUES_IOCTL", setLineValuesIoctl, 0xC040B409},
		{"GPIOHANDLE_SET_CONFIG_IOCTL", setLineConfigIoctl, 0xC054B40A},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, uintptr(tc.got))
		})
	}
}

func TestStructSizes(t *testing.T) {
	assert.Equal(t, uintptr(68), unsafe.Sizeof(ChipInfo{}))
	assert.Equal(t, uintptr(72), unsafe.Sizeof(LineInfo{}))
	assert.Equal(t, uintptr(364), unsafe.Sizeof(HandleRequest{}))
	assert.Equal(t, uintptr(84), unsafe.Sizeof(HandleConfig{}))
	assert.Equal(t, uintptr(64), unsafe.Sizeof(HandleData{}))
	assert.Equal(t, uintptr(48), unsafe.Sizeof(EventRequest{}))
}

func TestBytesToString(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"terminated", []byte{'l', 'e', 'd', 0, 'x', 'x'}, "led"},
		{"unterminated", []byte{'l', 'e', 'd'}, "led"},
		{"empty", []byte{0, 0, 0}, ""},
		{"nil", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BytesToString(tc.in))
		})
	}
}

func TestEventFlagComposition(t *testing.T) {
	assert.Equal(t, EventRequestRisingEdge|EventRequestFallingEdge, EventRequestBothEdges)
}
