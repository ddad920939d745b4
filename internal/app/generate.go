package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nuetzliches/nginxgen/internal/config"
	"github.com/nuetzliches/nginxgen/internal/fsutil"
	"github.com/nuetzliches/nginxgen/internal/issuance"
	"github.com/nuetzliches/nginxgen/internal/nginx"
)

const defaultConfigPath = "./appconf.yml"

type generateOptions struct {
	configPath      string
	outPath         string
	watch           bool
	nginxPIDFile    string
	acmeDomainFile  string
	acmeDB          string
	acmePostgresDSN string
}

func generateCmd(args []string) int {
	return runGenerateCmd(args, os.Stdout, os.Stderr)
}

func runGenerateCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts generateOptions
	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "path to the input document (.yml, .yaml, .json or .hcl)")
	fs.StringVar(&opts.outPath, "out", "", "write the configuration to this path instead of stdout")
	fs.BoolVar(&opts.watch, "watch", false, "regenerate when the input document changes (requires --out)")
	fs.StringVar(&opts.nginxPIDFile, "nginx-pid", "", "signal the nginx master in this pid file to reload after writing --out")
	fs.StringVar(&opts.acmeDomainFile, "acme-domain-file", issuance.DefaultDomainFile, "file that receives the domain requesting automatic issuance")
	fs.StringVar(&opts.acmeDB, "acme-db", "", "sqlite database that records every automatic issuance request (env NGINXGEN_ACME_DB)")
	fs.StringVar(&opts.acmePostgresDSN, "acme-postgres-dsn", "", "postgres DSN that records every automatic issuance request (env NGINXGEN_ACME_POSTGRES_DSN)")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	dotenvPath := fs.String("dotenv", "", "load environment variables from this file")
	otlpEndpoint := fs.String("otlp-endpoint", "", "OTLP/HTTP trace collector URL (env OTEL_EXPORTER_OTLP_ENDPOINT)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	switch fs.NArg() {
	case 0:
	case 1:
		opts.configPath = fs.Arg(0)
	default:
		fmt.Fprintln(stderr, "usage: nginxgen generate [flags] [config]")
		return exitUsage
	}
	if opts.watch && strings.TrimSpace(opts.outPath) == "" {
		fmt.Fprintln(stderr, "generate: --watch requires --out")
		return exitUsage
	}

	if *dotenvPath != "" {
		if err := loadDotenv(*dotenvPath); err != nil {
			fmt.Fprintf(stderr, "dotenv: %v\n", err)
			return exitUsage
		}
	}
	if opts.acmeDB == "" {
		opts.acmeDB = os.Getenv("NGINXGEN_ACME_DB")
	}
	if opts.acmePostgresDSN == "" {
		opts.acmePostgresDSN = os.Getenv("NGINXGEN_ACME_POSTGRES_DSN")
	}

	logger, err := newLoggerTo(stderr, *logLevel)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return exitUsage
	}

	if _, err := os.Stat(opts.configPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "This tool requires %s to be present. Did you forget to mount it?\n", opts.configPath)
		return exitMissingInput
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := startTracing(ctx, *otlpEndpoint, logger)
	defer shutdownTracing()

	recorder, closeRecorder, err := openRecorder(opts)
	if err != nil {
		logger.Error("issuance_store_failed", slog.Any("err", err))
		fmt.Fprintln(stderr, err.Error())
		return exitFailure
	}
	defer closeRecorder()

	g := &generator{
		opts:     opts,
		stdout:   stdout,
		logger:   logger,
		recorder: recorder,
		reload:   reloadNginx,
	}
	if err := g.run(ctx); err != nil {
		fmt.Fprintln(stderr, err.Error())
		if !opts.watch {
			return exitFailure
		}
	}
	if !opts.watch {
		return exitOK
	}

	watchConfig(ctx, opts.configPath, logger, func() {
		// failures are logged by run; the previous output stays in place
		_ = g.run(ctx)
	})
	return exitOK
}

// generator runs one load, generate, write and record cycle.
type generator struct {
	opts     generateOptions
	stdout   io.Writer
	logger   *slog.Logger
	recorder issuance.Recorder
	reload   func(pidFile string) error
}

func (g *generator) run(ctx context.Context) error {
	cfg, err := config.Load(g.opts.configPath)
	if err != nil {
		g.logger.Error("generate_failed", slog.String("config", g.opts.configPath), slog.Any("err", err))
		return err
	}
	res, err := nginx.GenerateDocument(ctx, cfg)
	if err != nil {
		attrs := []any{slog.String("config", g.opts.configPath), slog.Any("err", err)}
		var cerr *config.Error
		if errors.As(err, &cerr) {
			attrs = append(attrs, slog.String("field", cerr.Field), slog.String("kind", cerr.Kind.String()))
		}
		g.logger.Error("generate_failed", attrs...)
		return err
	}
	for _, w := range res.Warnings {
		g.logger.Warn("config_warning", slog.String("warning", w))
	}

	out := res.Bytes()
	if g.opts.outPath == "" {
		if _, err := g.stdout.Write(out); err != nil {
			return err
		}
	} else if err := fsutil.WriteFileAtomic(g.opts.outPath, out, 0o644); err != nil {
		g.logger.Error("write_failed", slog.String("out", g.opts.outPath), slog.Any("err", err))
		return fmt.Errorf("write %s: %w", g.opts.outPath, err)
	}

	if len(res.ACMEDomains) > 0 && g.recorder != nil {
		if err := g.recorder.Record(ctx, res.ACMEDomains); err != nil {
			g.logger.Error("issuance_record_failed", slog.Any("domains", res.ACMEDomains), slog.Any("err", err))
			return fmt.Errorf("record issuance request: %w", err)
		}
		g.logger.Info("issuance_requested", slog.Any("domains", res.ACMEDomains))
	}

	if g.opts.nginxPIDFile != "" && g.opts.outPath != "" && g.reload != nil {
		if err := g.reload(g.opts.nginxPIDFile); err != nil {
			g.logger.Warn("nginx_reload_failed", slog.String("pid_file", g.opts.nginxPIDFile), slog.Any("err", err))
		} else {
			g.logger.Info("nginx_reloaded", slog.String("pid_file", g.opts.nginxPIDFile))
		}
	}

	g.logger.Info("generate_ok",
		slog.String("config", g.opts.configPath),
		slog.Int("bytes", len(out)),
		slog.Int("acme_domains", len(res.ACMEDomains)),
	)
	return nil
}

// openRecorder builds the issuance sinks selected by opts. The domain file is
// always written; database sinks are added when configured.
func openRecorder(opts generateOptions) (issuance.Recorder, func(), error) {
	recorders := issuance.MultiRecorder{issuance.FileRecorder{Path: opts.acmeDomainFile}}
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	if opts.acmeDB != "" {
		s, err := issuance.NewSQLiteStore(opts.acmeDB)
		if err != nil {
			return nil, nil, fmt.Errorf("open issuance db: %w", err)
		}
		closers = append(closers, s)
		recorders = append(recorders, s)
	}
	if opts.acmePostgresDSN != "" {
		s, err := issuance.NewPostgresStore(opts.acmePostgresDSN)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open issuance postgres: %w", err)
		}
		closers = append(closers, s)
		recorders = append(recorders, s)
	}
	return recorders, closeAll, nil
}
