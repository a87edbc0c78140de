// Command composedemo renders a YAML scene with the compose driver and
// saves the frame as PNG.
package main

import (
	"context"
	"flag"
	"image/png"
	"log"
	"os"

	"github.com/pkg/profile"

	"github.com/gogpu/compose"
	_ "github.com/gogpu/compose/backend/compat"
	_ "github.com/gogpu/compose/backend/native"
)

func main() {
	var (
		scenePath  = flag.String("scene", "scene.yaml", "scene file")
		configPath = flag.String("config", "", "driver config file (TOML)")
		backend    = flag.String("backend", "", "backend name, overrides the config")
		output     = flag.String("output", "frame.png", "output file")
		cpuProfile = flag.Bool("cpuprofile", false, "write a CPU profile to the working directory")
	)
	flag.Parse()

	if *cpuProfile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}

	scene, err := LoadScene(*scenePath)
	if err != nil {
		log.Fatal(err)
	}

	var cfg compose.Config
	if *configPath != "" {
		if cfg, err = compose.LoadConfig(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	opts, err := cfg.Options(os.Stderr)
	if err != nil {
		log.Fatal(err)
	}

	d, err := compose.New(scene.Width, scene.Height, opts...)
	if err != nil {
		log.Fatalf("Failed to create driver: %v", err)
	}
	defer d.Close()

	if err := scene.Render(d); err != nil {
		log.Fatalf("Failed to render: %v", err)
	}
	if err := d.Flush(context.Background()); err != nil {
		log.Fatalf("Failed to flush: %v", err)
	}
	img, err := d.Frame()
	if err != nil {
		log.Fatal(err)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		log.Fatalf("Failed to save: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}

	log.Printf("Frame saved to %s (%dx%d, %s backend)\n", *output, scene.Width, scene.Height, d.Backend())
}
