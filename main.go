package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/talentvibe/tui/internal/app"
)

const usage = `Usage: talentvibe-tui [--config path] [--description text] [résumé files...]

Submits a job description and a batch of résumés to the analysis backend,
streams progress and opens the job once it is accepted.

Options:
  --config path        config file (default $XDG_CONFIG_HOME/talentvibe/config.toml)
  --description text   prefill the job description
  -v, --version        print the version
  -h, --help           print this help`

func main() {
	opts, done, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n\n%s\n", err, usage)
		os.Exit(2)
	}
	if done {
		return
	}

	if err := app.Run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs reads flags and positional files. done reports that a flag such
// as --version was fully handled.
func parseArgs(args []string) (opts app.Options, done bool, err error) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--version" || arg == "-v" || arg == "version":
			fmt.Printf("%s tui %s\n", app.AppName, app.AppVersion)
			return opts, true, nil
		case arg == "--help" || arg == "-h" || arg == "help":
			fmt.Printf("%s tui %s\n\n%s\n", app.AppName, app.AppVersion, usage)
			return opts, true, nil
		case arg == "--config" || arg == "--description":
			if i+1 >= len(args) {
				return opts, false, fmt.Errorf("%s needs a value", arg)
			}
			i++
			if arg == "--config" {
				opts.ConfigPath = args[i]
			} else {
				opts.Description = args[i]
			}
		case strings.HasPrefix(arg, "--config="):
			opts.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "--description="):
			opts.Description = strings.TrimPrefix(arg, "--description=")
		case strings.HasPrefix(arg, "-") && arg != "-":
			return opts, false, fmt.Errorf("unknown flag %s", arg)
		default:
			opts.Files = append(opts.Files, arg)
		}
	}
	return opts, false, nil
}
