// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"image/color"
	"image/draw"
	"strconv"
	"time"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freesans"

	"github.com/crimpkit/crimp/cmd/internal/ring"
)

// forceReadout shows the current force and the session peak.
type forceReadout struct {
	img  draw.Image
	peak float32
}

func newForceReadout(img draw.Image) *forceReadout {
	return &forceReadout{img: img}
}

func (r *forceReadout) add(kg float32) {
	if kg > r.peak {
		r.peak = kg
	}
	blank(r.img)

	width := r.img.Bounds().Dx()
	yOffset := -10

	kgText := strconv.FormatFloat(float64(kg), 'f', 1, 32)
	kgFont := &freesans.Bold18pt7b
	_, kgW := tinyfont.LineWidth(kgFont, kgText)
	tinyfont.WriteLine(
		displayShim{r.img},
		kgFont,
		int16(width-int(kgW))/2, int16(int(kgFont.YAdvance)+yOffset), kgText,
		color.RGBA{A: 0xff},
	)

	peakText := "^" + strconv.FormatFloat(float64(r.peak), 'f', 1, 32)
	peakFont := &freesans.Regular9pt7b
	_, peakW := tinyfont.LineWidth(peakFont, peakText)
	tinyfont.WriteLine(
		displayShim{r.img},
		peakFont,
		int16(width-int(peakW))/2, int16(int(peakFont.YAdvance)+int(kgFont.YAdvance)+yOffset), peakText,
		color.RGBA{A: 0xff},
	)
}

// pullHistory plots the mean force over successive periods, one pixel
// per period.
type pullHistory struct {
	ring *ring.Buffer[int32]
	wait time.Duration
	last time.Time
	img  draw.Image
	buf  []int32

	sum float64
	n   int
}

func newPullHistory(period time.Duration, img draw.Image) *pullHistory {
	return &pullHistory{
		ring: ring.NewBuffer[int32](img.Bounds().Dx()),
		wait: period,
		img:  img,
	}
}

func (h *pullHistory) add(ts time.Time, kg float32) {
	h.sum += float64(kg)
	h.n++
	if h.last.IsZero() {
		h.last = ts
		return
	}
	if ts.Sub(h.last) <= h.wait {
		return
	}
	h.last = ts
	h.ring.Write([]int32{int32(h.sum / float64(h.n) * 1000)})
	h.sum = 0
	h.n = 0

	h.plot()
}

func (h *pullHistory) plot() {
	if len(h.buf) < h.ring.Size() {
		h.buf = make([]int32, h.ring.Size())
	}

	blank(h.img)

	n := h.ring.CopyTo(h.buf)
	plotTrace(h.img, h.buf[:n], 2000)
}

// forcePlot draws the recent raw force trace.
type forcePlot struct {
	img draw.Image
	buf []int32
}

func newForcePlot(img draw.Image) *forcePlot {
	return &forcePlot{
		img: img,
		buf: make([]int32, img.Bounds().Dx()),
	}
}

func (p *forcePlot) width() int {
	return p.img.Bounds().Dx()
}

func (p *forcePlot) add(r *ring.Buffer[int32]) {
	if r.Len() < p.width() {
		return
	}
	r.CopyTo(p.buf)
	blank(p.img)
	plotTrace(p.img, p.buf, 5000)
}

// plotTrace draws trace onto dst, inverted so larger values plot
// higher, auto-scaled with a floor of minRange grams so a quiet
// baseline is not blown up into noise.
func plotTrace(dst draw.Image, trace []int32, minRange int32) {
	if len(trace) < 2 {
		return
	}
	for i, v := range trace {
		trace[i] = -v
	}
	min := trace[0]
	max := min
	for _, v := range trace[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	height := dst.Bounds().Dy()
	for i, v := range trace[1:] {
		line(dst, i, scale(trace[i], min, max, minRange, height), i+1, scale(v, min, max, minRange, height), color.Black)
	}
}
