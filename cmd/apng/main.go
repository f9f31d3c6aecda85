// Copyright 2025 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Apng encodes images to PNG or animated APNG.
package main

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/unixdj/apng"
	"github.com/unixdj/apng/mux"

	"github.com/mattn/go-isatty"
	"github.com/pborman/getopt/v2"
)

var g = struct {
	fn     string // output filename
	format string // png / apng
	pred   string // filter predictor
	delay  int    // frame delay in centiseconds
	loop   int    // animation loop count
	level  int    // compression level
	dpi    int    // dots per inch
	dpm    int    // dots per metre
	ilace  bool   // Adam7 interlacing
}{
	delay: 10,
	level: -1,
}

var preds = []string{"none", "sub", "up", "avg", "paeth", "mixed"}

func printUsage(w io.Writer) {
	cl := getopt.CommandLine
	fmt.Fprint(w, "PNG/APNG encoder\nUsage: ", cl.Program(),
		" ", cl.UsageLine(), ` file ...
Input images (PNG, JPEG or GIF) are re-encoded as one PNG or, for
multiple inputs, one animated APNG.

`)
	cl.PrintOptions(w)
}

type opt func()

func (opt) String() string                    { return "" }
func (o opt) Set(string, getopt.Option) error { o(); return nil }

func usage() {
	printUsage(os.Stderr)
	os.Exit(2)
}

func help() {
	printUsage(os.Stdout)
	os.Exit(0)
}

func version() {
	fmt.Println(`apng version 0.1.0
Copyright (c) 2025 Vadim Vygonets`)
	os.Exit(0)
}

func parseFlags() []string {
	getopt.SetParameters("file ...")
	getopt.SetUsage(usage)
	getopt.Flag(opt(help), 'h', "show this help").SetFlag()
	getopt.Flag(opt(version), 'V', "print version and copyright").SetFlag()
	getopt.Flag(&g.fn, 'o', `output file, or "-" for standard output`,
		"file")
	ff := getopt.Enum('t', []string{"png", "apng"}, "",
		"output format; default png for a single input, apng otherwise",
		"type")
	pred := getopt.Enum('p', preds, "none",
		"row filter predictor: "+strings.Join(preds, ", "), "pred")
	lev := getopt.Signed('z', -1, &getopt.SignedLimit{Base: 0, Bits: 8, Min: -1, Max: 9},
		"deflate level, 0-9; -1 for the library default", "level")
	getopt.Flag(&g.delay, 'd', "frame delay in centiseconds", "cs")
	getopt.Flag(&g.loop, 'l', "loop count; 0 loops forever", "n")
	getopt.Flag(&g.ilace, 'i', "Adam7 interlacing")
	getopt.FlagLong(&g.dpi, "dpi", 0, "pixel density, dots per inch", "n")
	getopt.FlagLong(&g.dpm, "dpm", 0, "pixel density, dots per metre", "n")

	getopt.Parse()
	args := getopt.Args()
	if len(args) == 0 {
		usage()
	}
	g.format = *ff
	if g.format == "" {
		if len(args) > 1 {
			g.format = "apng"
		} else {
			g.format = "png"
		}
	}
	g.pred = *pred
	g.level = int(*lev)
	if g.delay < 0 || g.delay > 0xffff || g.loop < 0 {
		usage()
	}
	if g.fn == "-" {
		g.fn = ""
	}
	return args
}

func filter() apng.Filter {
	for i, v := range preds {
		if v == g.pred {
			return apng.Filter(i)
		}
	}
	return apng.FilterNone
}

func level() apng.CompressionLevel {
	if g.level < 0 {
		return apng.DefaultCompression
	}
	if g.level == 0 {
		return apng.NoCompression
	}
	return apng.CompressionLevel(g.level)
}

func load(fn string) image.Image {
	f, err := os.Open(fn)
	if err != nil {
		log.Fatalln(err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		log.Fatalln(fn+":", err)
	}
	return img
}

// toFrame converts an image to an encoder frame.  Animations use RGBA
// throughout so the inter-frame search can blend; still images drop to
// RGB24 or GRAY8 when nothing needs the extra channels.
func toFrame(img image.Image, anim bool) *apng.Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if !anim {
		if gr, ok := img.(*image.Gray); ok {
			f := apng.NewFrame(apng.GRAY8, w, h)
			for y := 0; y < h; y++ {
				copy(f.Pix[y*f.Stride:], gr.Pix[y*gr.Stride:y*gr.Stride+w])
			}
			return f
		}
	}
	n := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(n, n.Bounds(), img, b.Min, draw.Src)
	if !anim {
		opaque := true
		for i := 3; i < len(n.Pix); i += 4 {
			if n.Pix[i] != 0xff {
				opaque = false
				break
			}
		}
		if opaque {
			f := apng.NewFrame(apng.RGB24, w, h)
			for i, j := 0, 0; i < len(n.Pix); i, j = i+4, j+3 {
				copy(f.Pix[j:j+3], n.Pix[i:i+3])
			}
			return f
		}
	}
	f := apng.NewFrame(apng.RGBA, w, h)
	copy(f.Pix, n.Pix)
	return f
}

func output() io.WriteCloser {
	if g.fn == "" {
		if isatty.IsTerminal(uintptr(syscall.Stdout)) {
			log.Fatalln("refusing to write image data to a terminal")
		}
		return os.Stdout
	}
	w, err := os.OpenFile(g.fn,
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		log.Fatalln(err)
	}
	return w
}

func config(f *apng.Frame) *apng.Config {
	return &apng.Config{
		Format:    f.Format,
		Width:     f.Width,
		Height:    f.Height,
		Interlace: g.ilace,
		Filter:    filter(),
		Level:     level(),
		DPI:       g.dpi,
		DPM:       g.dpm,
	}
}

func encodePNG(w io.Writer, fn string) error {
	f := toFrame(load(fn), false)
	enc, err := apng.NewEncoder(config(f))
	if err != nil {
		return err
	}
	defer enc.Close()
	pkt, err := enc.Encode(f)
	if err != nil {
		return err
	}
	_, err = w.Write(pkt)
	return err
}

func encodeAPNG(w io.Writer, args []string) error {
	frames := make([]*apng.Frame, len(args))
	for i, fn := range args {
		frames[i] = toFrame(load(fn), true)
		frames[i].PTS = int64(i)
		if frames[i].Width != frames[0].Width ||
			frames[i].Height != frames[0].Height {
			return fmt.Errorf("%s: frame size mismatch", fn)
		}
	}
	enc, err := apng.NewAnimEncoder(config(frames[0]))
	if err != nil {
		return err
	}
	defer enc.Close()
	m := mux.NewWriter(w)
	m.SetLoopCount(uint32(g.loop))
	emit := func(pkt *apng.Packet) error {
		if pkt == nil {
			return nil
		}
		if pkt.ExtraData != nil {
			m.SetExtradata(pkt.ExtraData)
		}
		return m.WriteFrame(pkt.Data, uint16(g.delay), 100)
	}
	for _, f := range frames {
		pkt, err := enc.Encode(f)
		if err != nil {
			return err
		}
		if err = emit(pkt); err != nil {
			return err
		}
	}
	pkt, err := enc.Encode(nil)
	if err != nil {
		return err
	}
	if err = emit(pkt); err != nil {
		return err
	}
	return m.Close()
}

func main() {
	log.SetFlags(0)
	args := parseFlags()

	w := output()
	var err error
	if g.format == "apng" {
		err = encodeAPNG(w, args)
	} else {
		err = encodePNG(w, args[0])
	}
	if err == nil {
		err = w.Close()
	}
	if err != nil {
		log.Fatalln(err)
	}
}
