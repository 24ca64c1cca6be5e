// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/sys/unix"

	"github.com/linuxhw/gpiod/uapi"
)

func TestLineInfoGetters(t *testing.T) {
	patchKernel(t)
	getLineInfo = func(fd uintptr, offset int) (uapi.LineInfo, error) {
		li := uapi.LineInfo{
			Offset: uint32(offset),
			Flags: uapi.LineFlagKernel | uapi.LineFlagIsOut |
				uapi.LineFlagActiveLow | uapi.LineFlagOpenDrain,
		}
		copy(li.Name[:], "STATUS_LED")
		copy(li.Consumer[:], "ledd")
		return li, nil
	}
	c := newTestChip("gpiochip0", 4)

	l, err := c.Line(1)
	require.NoError(t, err)
	assert.Equal(t, "STATUS_LED", l.Name())
	assert.Equal(t, "ledd", l.Consumer())
	assert.Equal(t, DirectionOutput, l.Direction())
	assert.Equal(t, ActiveLow, l.ActiveState())
	assert.True(t, l.IsUsed())
	assert.True(t, l.IsOpenDrain())
	assert.False(t, l.IsOpenSource())
	assert.Same(t, c, l.Chip())
}

func TestLineBiasPriority(t *testing.T) {
	tests := []struct {
		name  string
		flags uapi.LineFlag
		want  Bias
	}{
		{"none", 0, BiasAsIs},
		{"pull-up", uapi.LineFlagBiasPullUp, BiasPullUp},
		{"pull-down", uapi.LineFlagBiasPullDown, BiasPullDown},
		{"disable", uapi.LineFlagBiasDisable, BiasDisable},
		// Inconsistent kernel reports resolve strongest first.
		{"disable beats pull-up", uapi.LineFlagBiasDisable | uapi.LineFlagBiasPullUp, BiasDisable},
		{"pull-up beats pull-down", uapi.LineFlagBiasPullUp | uapi.LineFlagBiasPullDown, BiasPullUp},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := Line{flags: tc.flags}
			assert.Equal(t, tc.want, l.Bias())
		})
	}
}

func TestLineUpdateFailureMarksStale(t *testing.T) {
	patchKernel(t)
	stubLineInfo(t)
	c := newTestChip("gpiochip0", 4)
	l, err := c.Line(0)
	require.NoError(t, err)
	require.True(t, l.UpToDate())

	getLineInfo = func(fd uintptr, offset int) (uapi.LineInfo, error) {
		return uapi.LineInfo{}, unix.EIO
	}
	err = l.Update()
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.EIO)
	assert.False(t, l.UpToDate())
	// The cache keeps its last good content.
	assert.Equal(t, lineName(0), l.Name())
}

func TestLineRequestRelease(t *testing.T) {
	patchKernel(t)
	stubLineInfo(t)
	getLineHandle = func(fd uintptr, req *uapi.HandleRequest) error {
		req.Fd = 9
		return nil
	}
	closed := stubClose(t)
	c := newTestChip("gpiochip0", 4)
	l, err := c.Line(1)
	require.NoError(t, err)
	require.True(t, l.IsFree())

	require.NoError(t, l.Request(RequestConfig{RequestType: RequestDirectionInput}))
	assert.True(t, l.IsRequested())
	assert.False(t, l.IsFree())

	require.NoError(t, l.Release())
	assert.True(t, l.IsFree())
	assert.Equal(t, []int{9}, *closed)

	// Releasing a free line is a no-op.
	require.NoError(t, l.Release())
	assert.Equal(t, []int{9}, *closed)
}

func TestLineRequestBusy(t *testing.T) {
	patchKernel(t)
	stubLineInfo(t)
	handleCalls := 0
	getLineHandle = func(fd uintptr, req *uapi.HandleRequest) error {
		handleCalls++
		req.Fd = 9
		return nil
	}
	c := newTestChip("gpiochip0", 4)
	l, err := c.Line(1)
	require.NoError(t, err)
	require.NoError(t, l.Request(RequestConfig{RequestType: RequestDirectionInput}))

	// A second request must fail locally, before any kernel call.
	err = l.Request(RequestConfig{RequestType: RequestDirectionOutput})
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1, handleCalls)
	assert.True(t, l.IsRequested())
}

func TestLineValueAndSetValue(t *testing.T) {
	patchKernel(t)
	stubLineInfo(t)
	getLineHandle = func(fd uintptr, req *uapi.HandleRequest) error {
		req.Fd = 9
		return nil
	}
	var kernelValues uapi.HandleData
	getLineValues = func(fd uintptr, hd *uapi.HandleData) error {
		*hd = kernelValues
		return nil
	}
	setLineValues = func(fd uintptr, hd *uapi.HandleData) error {
		kernelValues = *hd
		return nil
	}
	c := newTestChip("gpiochip0", 4)
	l, err := c.Line(1)
	require.NoError(t, err)

	// Value and SetValue require an owned line.
	_, err = l.Value()
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.ErrorIs(t, l.SetValue(1), ErrPermissionDenied)

	require.NoError(t, l.Request(RequestConfig{RequestType: RequestDirectionOutput}, 1))
	require.NoError(t, l.SetValue(1))
	v, err := l.Value()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, l.SetValue(0))
	v, err = l.Value()
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestLineJSON(t *testing.T) {
	l := Line{
		offset: 3,
		flags:  uapi.LineFlagIsOut | uapi.LineFlagBiasPullUp,
		name:   "PWR_EN",
	}
	s := l.String()
	assert.Contains(t, s, `"Offset": 3`)
	assert.Contains(t, s, `"Name": "PWR_EN"`)
	assert.Contains(t, s, `"Direction": "Output"`)
	assert.Contains(t, s, `"Bias": "PullUp"`)
	assert.Contains(t, s, `"State": "Free"`)
}
