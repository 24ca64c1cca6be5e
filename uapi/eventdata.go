// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build linux && !386

package uapi

// EventData is the edge event record read from a request fd.
//
// The kernel struct is {u64 timestamp; u32 id}, which the compiler pads
// to 16 bytes on 64-bit ABIs.
type EventData struct {
	// The time the event was detected, in nanoseconds on the kernel
	// monotonic clock.
	Timestamp uint64

	// The type of edge detected, EventRisingEdgeID or EventFallingEdgeID.
	ID uint32

	// pad to match the 64-bit kernel struct layout
	_ uint32
}
