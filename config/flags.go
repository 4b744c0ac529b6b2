package config

import (
	"flag"
	"io"
)

// Flags are the command line options.
type Flags struct {
	ConfigPath string
	Setup      bool
}

// ParseFlags parses args without the program name.
func ParseFlags(args []string, output io.Writer) (Flags, error) {
	var f Flags

	fs := flag.NewFlagSet("colonyfeed", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.ConfigPath, "config", "", "path to yaml config")
	fs.BoolVar(&f.Setup, "setup", false, "run the interactive setup wizard and write the config")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	return f, nil
}
