// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The monitor command is a live force display for a Progressor
// protocol dynamometer.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"os/signal"
	"strings"

	"gioui.org/app"
	"gioui.org/font/gofont"
	"gioui.org/io/event"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"gioui.org/x/explorer"
	"tinygo.org/x/bluetooth"
)

func main() {
	adapter := bluetooth.DefaultAdapter
	err := adapter.Enable()
	if err != nil {
		fmt.Printf("failed to enable bluetooth: %v", err)
		os.Exit(1)
	}

	addr := flag.String("addr", "", "device bluetooth address (overrides -name)")
	name := flag.String("name", "Progressor", "advertised device name prefix")
	save := flag.Bool("save", false, "offer to save the display as a PNG on exit")
	flag.Parse()

	var macAddr bluetooth.Address
	if *addr != "" {
		err = macAddr.UnmarshalText([]byte(*addr))
		if err != nil {
			flag.Usage()
			os.Exit(2)
		}
	}

	fmt.Println("scanning...")
	var dev bluetooth.Device
	err = adapter.Scan(func(adapter *bluetooth.Adapter, found bluetooth.ScanResult) {
		switch {
		case *addr != "":
			if found.Address != macAddr {
				return
			}
		default:
			if !strings.HasPrefix(found.LocalName(), *name) {
				return
			}
		}
		fmt.Printf("found device:\n  mac: %s rss: %d\n  name: %q\n",
			found.Address, found.RSSI, found.LocalName())
		dev, err = adapter.Connect(found.Address, bluetooth.ConnectionParams{})
		if err != nil {
			fmt.Printf("failed to connect: %v", err)
			return
		}
		adapter.StopScan()
	})
	if err != nil {
		fmt.Printf("failed to scan: %v", err)
		os.Exit(1)
	}
	defer dev.Disconnect()

	update := make(chan image.Image)
	m, err := newMonitor(context.Background(), dev, update)
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		m.Close()
		os.Exit(0)
	}()

	go func() {
		w := new(app.Window)
		w.Option(app.Title("Force"), app.Size(296, 128))
		if err := loop(w, update, *save); err != nil {
			log.Fatal(err)
		}
		m.Close()
		os.Exit(0)
	}()
	app.Main()
}

func loop(w *app.Window, update chan image.Image, save bool) error {
	expl := explorer.NewExplorer(w)
	th := material.NewTheme()
	th.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))

	events := make(chan event.Event)
	ack := make(chan struct{})

	go func() {
		for {
			ev := w.Event()
			events <- ev
			<-ack
			if _, ok := ev.(app.DestroyEvent); ok {
				return
			}
		}
	}()
	var img image.Image
	var ops op.Ops
	for {
		select {
		case img = <-update:
			w.Invalidate()
		case e := <-events:
			expl.ListenEvents(e)
			switch e := e.(type) {
			case app.DestroyEvent:
				if save && img != nil {
					if err := savePNG(expl, img); err != nil {
						log.Printf("failed to save display: %v", err)
					}
				}
				ack <- struct{}{}
				return e.Err
			case app.FrameEvent:
				gtx := app.NewContext(&ops, e)
				layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
						if img == nil {
							return layout.Dimensions{}
						}
						return widget.Image{
							Src: paint.NewImageOp(img),
							Fit: widget.Contain,
						}.Layout(gtx)
					}),
				)
				e.Frame(gtx.Ops)
			}
			ack <- struct{}{}
		}
	}
}

func savePNG(expl *explorer.Explorer, img image.Image) error {
	f, err := expl.CreateFile("force.png")
	if err != nil {
		return err
	}
	err = png.Encode(f, img)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
