// Copyright 2024 The gpiod Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpiod

import "sync/atomic"

// fdHandle reference-counts one kernel request fd. Every line granted in
// the same bulk request shares the handle, and the fd is closed exactly
// once, when the last line detaches.
type fdHandle struct {
	fd   int
	refs int32
}

func newFdHandle(fd int) *fdHandle {
	return &fdHandle{fd: fd}
}

func (h *fdHandle) incref() {
	atomic.AddInt32(&h.refs, 1)
}

// decref detaches one reference, closing the fd when the count reaches
// zero. Returns the close error, if any.
func (h *fdHandle) decref() error {
	n := atomic.AddInt32(&h.refs, -1)
	if n == 0 {
		return closeFd(h.fd)
	}
	if n < 0 {
		panic("gpiod: fd handle released more times than acquired")
	}
	return nil
}
