// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build linux && 386

package uapi

// EventData is the edge event record read from a request fd.
//
// No trailing pad on i386; the record is 12 bytes.
type EventData struct {
	// The time the event was detected, in nanoseconds on the kernel
	// monotonic clock.
	Timestamp uint64

	// The type of edge detected, EventRisingEdgeID or EventFallingEdgeID.
	ID uint32
}
