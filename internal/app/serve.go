package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nuetzliches/nginxgen/internal/config"
	"github.com/nuetzliches/nginxgen/internal/nginx"
)

const (
	defaultMaxRenderBody = 1 << 20
	healthServiceName    = "nginxgen"
)

func serveCmd(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	listen := fs.String("listen", ":8080", "HTTP listen address")
	grpcListen := fs.String("grpc-listen", "", "gRPC health service listen address (disabled when empty)")
	maxBody := fs.Int64("max-body", defaultMaxRenderBody, "maximum accepted document size in bytes")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	otlpEndpoint := fs.String("otlp-endpoint", "", "OTLP/HTTP trace collector URL (env OTEL_EXPORTER_OTLP_ENDPOINT)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "serve: unexpected positional arguments")
		return exitUsage
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingOn := tracingEndpoint(*otlpEndpoint) != ""
	shutdownTracing := startTracing(ctx, *otlpEndpoint, logger)
	defer shutdownTracing()

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Error("listen_failed", slog.String("addr", *listen), slog.Any("err", err))
		return exitFailure
	}
	srv := &http.Server{
		Handler:           withAccessLog(logger, wrapTracingHandler(tracingOn, "nginxgen", newRenderMux(logger, *maxBody))),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveOnListener(logger, "render", srv, ln, stop)
	logger.Info("serving", slog.String("addr", ln.Addr().String()))

	var (
		gs *grpc.Server
		hs *health.Server
	)
	if *grpcListen != "" {
		gln, err := net.Listen("tcp", *grpcListen)
		if err != nil {
			logger.Error("listen_failed", slog.String("addr", *grpcListen), slog.Any("err", err))
			_ = srv.Close()
			return exitFailure
		}
		gs, hs = newHealthServer()
		go func() {
			if err := gs.Serve(gln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				logger.Error("grpc_server_error", slog.Any("err", err))
				stop()
			}
		}()
		logger.Info("serving_grpc_health", slog.String("addr", gln.Addr().String()))
	}

	<-ctx.Done()
	logger.Info("shutting_down")

	if hs != nil {
		hs.Shutdown()
	}
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http_shutdown_failed", slog.Any("err", err))
	}
	if gs != nil {
		gs.GracefulStop()
	}
	return exitOK
}

func newHealthServer() (*grpc.Server, *health.Server) {
	gs := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(healthServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}

func newRenderMux(logger *slog.Logger, maxBody int64) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /render", renderHandler(logger, maxBody))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	return mux
}

// renderHandler generates the configuration for the posted document. Domains
// that requested automatic issuance are reported in X-Acme-Domains; the
// service never records them.
func renderHandler(logger *slog.Logger, maxBody int64) http.Handler {
	if maxBody <= 0 {
		maxBody = defaultMaxRenderBody
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeValidationError(w, http.StatusRequestEntityTooLarge, config.ValidationResult{
					Errors: []string{fmt.Sprintf("document exceeds %d bytes", maxBody)},
				})
				return
			}
			writeValidationError(w, http.StatusBadRequest, config.ErrorResult(err))
			return
		}

		var cfg *config.Config
		if isHCLRequest(r) {
			cfg, err = config.ParseHCL(body, "request.hcl")
		} else {
			cfg, err = config.Parse(body)
		}
		if err == nil {
			var res nginx.Result
			res, err = nginx.GenerateDocument(r.Context(), cfg)
			if err == nil {
				for _, warning := range res.Warnings {
					logger.Warn("config_warning", slog.String("warning", warning))
				}
				if len(res.ACMEDomains) > 0 {
					w.Header().Set("X-Acme-Domains", strings.Join(res.ACMEDomains, ","))
				}
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				_, _ = w.Write(res.Bytes())
				return
			}
		}

		status := http.StatusUnprocessableEntity
		if errors.Is(err, nginx.ErrNotImplemented) {
			status = http.StatusNotImplemented
		}
		logger.Info("render_rejected", slog.Int("status", status), slog.Any("err", err))
		writeValidationError(w, status, config.ErrorResult(err))
	})
}

func isHCLRequest(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "hcl") {
		return true
	}
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	return strings.Contains(ct, "hcl")
}

func writeValidationError(w http.ResponseWriter, status int, res config.ValidationResult) {
	res.OK = false
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}
