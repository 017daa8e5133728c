package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
)

// Accepts the subset of sd flags the executor passes. Writes a W×H image whose
// color encodes the seed. A prompt containing "fail" exits non-zero and
// "noout" exits cleanly without writing output.
func main() {
	fs := flag.NewFlagSet("sd", flag.ContinueOnError)
	mode := fs.String("M", "", "mode")
	model := fs.String("m", "", "model")
	in := fs.String("i", "", "init image")
	out := fs.String("o", "", "output")
	prompt := fs.String("p", "", "prompt")
	fs.Float64("strength", 0, "")
	fs.Int("steps", 0, "")
	seed := fs.Int64("seed", 0, "")
	fs.Float64("cfg-scale", 0, "")
	w := fs.Int("W", 512, "")
	h := fs.Int("H", 512, "")
	fs.Bool("clip-on-cpu", false, "")
	fs.Bool("vae-on-cpu", false, "")
	fs.Int("t", 0, "")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if *mode != "img2img" || *model == "" {
		fmt.Fprintln(os.Stderr, "bad invocation")
		os.Exit(2)
	}
	if strings.Contains(*prompt, "fail") {
		fmt.Fprintln(os.Stderr, "fake sd: simulated failure")
		os.Exit(3)
	}
	f, err := os.Open(*in)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open input:", err)
		os.Exit(4)
	}
	if _, _, err := image.Decode(f); err != nil {
		fmt.Fprintln(os.Stderr, "decode input:", err)
		os.Exit(4)
	}
	f.Close()
	if strings.Contains(*prompt, "noout") {
		return
	}
	img := image.NewRGBA(image.Rect(0, 0, *w, *h))
	c := color.RGBA{R: uint8(*seed), G: 0x40, B: 0x80, A: 0xff}
	for y := 0; y < *h; y++ {
		for x := 0; x < *w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	of, err := os.Create(*out)
	if err != nil {
		fmt.Fprintln(os.Stderr, "create output:", err)
		os.Exit(6)
	}
	defer of.Close()
	if err := png.Encode(of, img); err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		os.Exit(6)
	}
}
