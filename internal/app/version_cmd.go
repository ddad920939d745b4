package app

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// inputFormats lists the appconf document formats generate accepts.
var inputFormats = []string{"yaml", "json", "hcl"}

// buildInfo describes this binary. Release builds stamp version, commit and
// buildDate through -ldflags.
type buildInfo struct {
	Version      string   `json:"version"`
	Commit       string   `json:"commit"`
	BuildDate    string   `json:"build_date"`
	GoVersion    string   `json:"go_version"`
	InputFormats []string `json:"input_formats"`
}

func currentBuildInfo() buildInfo {
	stamp := func(v string) string {
		if v = strings.TrimSpace(v); v == "" {
			return "unknown"
		}
		return v
	}
	return buildInfo{
		Version:      stamp(version),
		Commit:       stamp(commit),
		BuildDate:    stamp(buildDate),
		GoVersion:    runtime.Version(),
		InputFormats: inputFormats,
	}
}

func (b buildInfo) writeLong(w io.Writer) {
	fmt.Fprintf(w, "nginxgen %s, nginx.conf generator\n", b.Version)
	fmt.Fprintf(w, "  commit:  %s\n", b.Commit)
	fmt.Fprintf(w, "  built:   %s\n", b.BuildDate)
	fmt.Fprintf(w, "  go:      %s\n", b.GoVersion)
	fmt.Fprintf(w, "  inputs:  %s\n", strings.Join(b.InputFormats, ", "))
}

func versionCmd(args []string) int {
	return runVersionCmd(args, os.Stdout, os.Stderr)
}

func runVersionCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	longOutput := fs.Bool("long", false, "")
	jsonOutput := fs.Bool("json", false, "")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "version: %v\n", err)
		return exitUsage
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, "version: unexpected positional arguments")
		return exitUsage
	}

	info := currentBuildInfo()
	switch {
	case *jsonOutput:
		if err := json.NewEncoder(stdout).Encode(info); err != nil {
			fmt.Fprintf(stderr, "version: %v\n", err)
			return exitFailure
		}
	case *longOutput:
		info.writeLong(stdout)
	default:
		fmt.Fprintln(stdout, info.Version)
	}
	return exitOK
}
