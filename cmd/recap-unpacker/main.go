package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/JeanxPereira/recap-unpacker/internal/convert"
	"github.com/JeanxPereira/recap-unpacker/internal/extract"
	"github.com/JeanxPereira/recap-unpacker/internal/names"
	"github.com/JeanxPereira/recap-unpacker/internal/utils"
)

func main() {
	debug := pflag.BoolP("debug", "d", false, "enable debug logging")
	regDir := pflag.String("reg", "registries", "directory holding reg_file.txt and reg_type.txt")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-d|--debug] [--reg DIR] <inputFile...> <destinationDir>\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *debug {
		utils.CurrentLevel = utils.LevelDebug
	}

	args := pflag.Args()
	if len(args) < 2 {
		pflag.Usage()
		os.Exit(1)
	}
	inputs := args[:len(args)-1]
	dest := args[len(args)-1]

	for _, input := range inputs {
		if _, err := os.Stat(input); err != nil {
			utils.Error("input: %v", err)
			os.Exit(1)
		}
	}

	registry := names.NewRegistry()
	if err := registry.LoadDirectory(*regDir); err != nil {
		utils.Error("registry: %v", err)
		os.Exit(1)
	}

	opts := extract.Options{
		Registry:   registry,
		Converters: []convert.Converter{convert.NewTextureConverter(registry)},
	}
	opts.Converters = append(opts.Converters, extract.NewPackageConverter(&opts))

	res, err := extract.New(opts).ExtractAll(inputs, dest)
	if err != nil {
		utils.Error("%v", err)
		os.Exit(1)
	}

	// Per-item failures were logged as they happened; the run still counts
	// as a success.
	utils.Info("done: %d written (%d converted), %d skipped, %d failed",
		res.Written, res.Converted, res.Skipped, len(res.Failures))
}
