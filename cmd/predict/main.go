// Command predict classifies a leaf image and prints the plant-disease label.
//
//	predict [-model path] [-device auto|cpu|cuda] [-v] <image_path>
//
// Exit status is 0 with the label on stdout, or 1 with an error message.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Brownie44l1/agri-assist/internal/classes"
	"github.com/Brownie44l1/agri-assist/internal/config"
	"github.com/Brownie44l1/agri-assist/internal/model"
	"github.com/Brownie44l1/agri-assist/internal/predict"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(stderr)
	modelFlag := fs.String("model", "", "model artifact (default: models/"+config.DefaultModelFile+" next to the executable)")
	deviceFlag := fs.String("device", "", "compute device: auto, cpu or cuda")
	verbose := fs.Bool("v", false, "log loader details to stderr")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if *verbose {
		log.SetOutput(stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Error: No image file path provided")
		return 1
	}
	imagePath := fs.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	modelPath := cfg.ModelPath
	if *modelFlag != "" {
		modelPath = *modelFlag
	}
	deviceName := cfg.Device
	if *deviceFlag != "" {
		deviceName = *deviceFlag
	}
	device, err := model.ParseDevice(deviceName)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if !exists(imagePath) {
		fmt.Fprintf(stderr, "Error: Image file does not exist at %s\n", imagePath)
		return 1
	}
	if !exists(modelPath) {
		fmt.Fprintf(stderr, "Error: Model file does not exist at %s\n", modelPath)
		return 1
	}

	label, err := predict.PredictFile(imagePath, modelPath, model.Options{
		Classes:           classes.Default(),
		Device:            device,
		SHA256:            cfg.ModelSHA256,
		MetadataPath:      cfg.ModelMetadataPath,
		SharedLibraryPath: cfg.ORTLibraryPath,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error running prediction: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, label)
	return 0
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
