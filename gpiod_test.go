// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiod

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxhw/gpiod/uapi"
)

// patchKernel snapshots the kernel boundary and the filesystem roots and
// restores them when the test ends, so each test can substitute its own
// fake chardev behavior.
func patchKernel(t *testing.T) {
	t.Helper()
	saveChipInfo := getChipInfo
	saveLineInfo := getLineInfo
	saveLineHandle := getLineHandle
	saveLineEvent := getLineEvent
	saveLineValues := getLineValues
	saveSetValues := setLineValues
	saveSetConfig := setLineConfig
	saveReadEvent := readEvent
	savePoll := pollFds
	saveClose := closeFd
	saveDevDir := devDir
	saveSysfs := sysfsGpioDir
	t.Cleanup(func() {
		getChipInfo = saveChipInfo
		getLineInfo = saveLineInfo
		getLineHandle = saveLineHandle
		getLineEvent = saveLineEvent
		getLineValues = saveLineValues
		setLineValues = saveSetValues
		setLineConfig = saveSetConfig
		readEvent = saveReadEvent
		pollFds = savePoll
		closeFd = saveClose
		devDir = saveDevDir
		sysfsGpioDir = saveSysfs
	})
}

// newTestChip builds a chip handle directly, bypassing OpenChip, so the
// kernel boundary stubs see a plausible fd without any device present.
func newTestChip(name string, lineCount int) *Chip {
	return &Chip{
		fd:        42,
		name:      name,
		label:     "test-" + name,
		lineCount: lineCount,
		lines:     make([]*Line, lineCount),
	}
}

// stubLineInfo installs a getLineInfo that reports every line as a free
// input named LINE<offset>.
func stubLineInfo(t *testing.T) {
	t.Helper()
	getLineInfo = func(fd uintptr, offset int) (uapi.LineInfo, error) {
		li := uapi.LineInfo{Offset: uint32(offset)}
		copy(li.Name[:], lineName(offset))
		return li, nil
	}
}

func lineName(offset int) string {
	return "LINE" + string(rune('A'+offset))
}

// stubClose records every fd handed to closeFd.
func stubClose(t *testing.T) *[]int {
	t.Helper()
	var closed []int
	closeFd = func(fd int) error {
		closed = append(closed, fd)
		return nil
	}
	return &closed
}

func TestConsumerBytes(t *testing.T) {
	got := consumerBytes("blinker")
	assert.Equal(t, "blinker", uapi.BytesToString(got[:]))

	long := strings.Repeat("x", uapi.NameSize+10)
	got = consumerBytes(long)
	s := uapi.BytesToString(got[:])
	assert.Len(t, s, uapi.NameSize-1)
	assert.Equal(t, long[:uapi.NameSize-1], s)
}

func TestConsumerBytesDefault(t *testing.T) {
	got := consumerBytes("")
	s := uapi.BytesToString(got[:])
	require.NotEmpty(t, s)
	assert.Equal(t, defaultConsumer, s)
	assert.Contains(t, s, "@")
	assert.Less(t, len(s), uapi.NameSize)
}

func TestTranslateFlags(t *testing.T) {
	tests := []struct {
		name   string
		rtype  RequestType
		flags  RequestFlag
		wantHf uapi.HandleFlag
		wantEf uapi.EventFlag
		ok     bool
	}{
		{"as-is", RequestDirectionAsIs, 0, 0, 0, true},
		{"input", RequestDirectionInput, 0, uapi.HandleRequestInput, 0, true},
		{"output", RequestDirectionOutput, 0, uapi.HandleRequestOutput, 0, true},
		{"output open-drain", RequestDirectionOutput, FlagOpenDrain,
			uapi.HandleRequestOutput | uapi.HandleRequestOpenDrain, 0, true},
		{"output open-source active-low", RequestDirectionOutput, FlagOpenSource | FlagActiveLow,
			uapi.HandleRequestOutput | uapi.HandleRequestOpenSource | uapi.HandleRequestActiveLow, 0, true},
		{"input pull-up", RequestDirectionInput, FlagBiasPullUp,
			uapi.HandleRequestInput | uapi.HandleRequestBiasPullUp, 0, true},
		{"input pull-down", RequestDirectionInput, FlagBiasPullDown,
			uapi.HandleRequestInput | uapi.HandleRequestBiasPullDown, 0, true},
		{"input bias-disable", RequestDirectionInput, FlagBiasDisable,
			uapi.HandleRequestInput | uapi.HandleRequestBiasDisable, 0, true},
		{"rising", RequestEventRisingEdge, 0, uapi.HandleRequestInput, uapi.EventRequestRisingEdge, true},
		{"falling", RequestEventFallingEdge, 0, uapi.HandleRequestInput, uapi.EventRequestFallingEdge, true},
		{"both", RequestEventBothEdges, 0, uapi.HandleRequestInput, uapi.EventRequestBothEdges, true},
		{"drain and source", RequestDirectionOutput, FlagOpenDrain | FlagOpenSource, 0, 0, false},
		{"drain on input", RequestDirectionInput, FlagOpenDrain, 0, 0, false},
		{"source on event", RequestEventBothEdges, FlagOpenSource, 0, 0, false},
		{"two biases", RequestDirectionInput, FlagBiasPullUp | FlagBiasPullDown, 0, 0, false},
		{"unknown type", RequestType(99), 0, 0, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hf, ef, err := translateFlags(tc.rtype, tc.flags)
			if !tc.ok {
				require.ErrorIs(t, err, ErrInvalidArg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantHf, hf)
			assert.Equal(t, tc.wantEf, ef)
		})
	}
}
