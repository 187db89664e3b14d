// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package progressor implements the Tindeq Progressor BLE measurement
// protocol: the vendor GATT service identifiers, the control point
// command set, data point response encoding, and the device-side
// state machine and sampling loop shared by the two device tasks.
//
// Protocol documentation is available from the [Tindeq Progressor API].
//
// [Tindeq Progressor API]: https://tindeq.com/progressor_api/
package progressor

import (
	"context"
	"log/slog"

	"tinygo.org/x/bluetooth"
)

// Service and characteristic identifiers.
const (
	ServiceID      = "7e4e1701-1ea6-40c9-9dcc-13d34ffead57"
	DataPointID    = "7e4e1702-1ea6-40c9-9dcc-13d34ffead57"
	ControlPointID = "7e4e1703-1ea6-40c9-9dcc-13d34ffead57"
)

var (
	// Service is the vendor-specific Progressor service UUID.
	Service = must(bluetooth.ParseUUID(ServiceID))
	// DataPointChar is the notify characteristic carrying DataPoints.
	DataPointChar = must(bluetooth.ParseUUID(DataPointID))
	// ControlPointChar is the write characteristic receiving commands.
	ControlPointChar = must(bluetooth.ParseUUID(ControlPointID))
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// queueSize is the capacity of the outbound data point queue. At the
// 80Hz streaming rate this is one second of backlog.
const queueSize = 80

// Queue is the bounded FIFO carrying data points from the sampling
// task to the notifying task. Sends never block: when the consumer
// falls behind, the newest point is dropped so the sampler keeps its
// cadence and the stream stays fresh.
type Queue struct {
	ch  chan DataPoint
	log *slog.Logger
}

// NewQueue returns an empty queue. If logger is nil, slog.Default is
// used.
func NewQueue(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{ch: make(chan DataPoint, queueSize), log: logger}
}

// TrySend enqueues p without blocking, reporting whether the point was
// accepted. A full queue drops p and logs the loss.
func (q *Queue) TrySend(p DataPoint) bool {
	select {
	case q.ch <- p:
		return true
	default:
		q.log.Error("failed to send data point", "code", p.Code)
		return false
	}
}

// Receive blocks until a data point is available or ctx is cancelled.
func (q *Queue) Receive(ctx context.Context) (DataPoint, error) {
	select {
	case <-ctx.Done():
		return DataPoint{}, ctx.Err()
	case p := <-q.ch:
		return p, nil
	}
}

// Len returns the number of queued data points.
func (q *Queue) Len() int { return len(q.ch) }
