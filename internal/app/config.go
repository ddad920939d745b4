package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nuetzliches/nginxgen/internal/config"
	"github.com/nuetzliches/nginxgen/internal/nginx"
)

func validateCmd(args []string) int {
	return runValidateCmd(args, os.Stdout, os.Stderr)
}

func runValidateCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "path to the input document")
	format := fs.String("format", "json", "output format: json|text")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *format != "json" && *format != "text" {
		fmt.Fprintf(stderr, "validate: invalid --format %q (use: json|text)\n", *format)
		return exitUsage
	}

	var res config.ValidationResult
	cfg, err := config.Load(*configPath)
	if err != nil {
		res = config.ErrorResult(err)
	} else {
		res = config.ValidateWithResult(cfg)
		if res.OK {
			// Generation can still fail after compilation, e.g. on an
			// upstream name used by two servers.
			if _, err := nginx.GenerateDocument(context.Background(), cfg); err != nil {
				res = config.ErrorResult(err)
			}
		}
	}

	out := stdout
	code := exitOK
	if !res.OK {
		out = stderr
		code = exitFailure
	}

	if *format == "text" {
		fmt.Fprintln(out, config.FormatValidationText(res))
		for _, w := range res.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		return code
	}

	msg, err := config.FormatValidationJSON(res)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return exitFailure
	}
	fmt.Fprintln(out, msg)
	return code
}

func diffCmd(args []string) int {
	return runDiffCmd(args, os.Stdout, os.Stderr)
}

// runDiffCmd prints a unified diff of the configuration two documents
// generate. Exits 0 when identical and 1 when they differ.
func runDiffCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	fs.SetOutput(stderr)
	contextLines := fs.Int("context", 3, "number of unified diff context lines")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, "usage: nginxgen diff [--context N] <old> <new>")
		return exitUsage
	}
	oldPath, newPath := fs.Arg(0), fs.Arg(1)

	oldCfg, err := config.Load(oldPath)
	if err != nil {
		return diffLoadError(stderr, oldPath, err)
	}
	newCfg, err := config.Load(newPath)
	if err != nil {
		return diffLoadError(stderr, newPath, err)
	}

	diff, err := nginx.DiffDocuments(context.Background(), oldCfg, newCfg, *contextLines, oldPath, newPath)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return exitUsage
	}
	if diff == "" {
		return exitOK
	}
	fmt.Fprintln(stdout, diff)
	return exitFailure
}

func diffLoadError(stderr io.Writer, path string, err error) int {
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "This tool requires %s to be present. Did you forget to mount it?\n", path)
		return exitMissingInput
	}
	fmt.Fprintln(stderr, err.Error())
	return exitUsage
}
