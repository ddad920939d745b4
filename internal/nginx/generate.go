// Package nginx turns a compiled input document into an nginx directive
// tree: upstream pools, per-server blocks and the http/global settings that
// wrap them.
package nginx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nuetzliches/nginxgen/internal/config"
	"github.com/nuetzliches/nginxgen/internal/directive"
)

var tracer = otel.Tracer("github.com/nuetzliches/nginxgen/internal/nginx")

// Result is one generated configuration.
type Result struct {
	Tree []directive.Directive

	// ACMEDomains lists, in document order, the server_name of every server
	// that requested automatic issuance. Callers hand these to the issuance
	// recorder after the output has been written.
	ACMEDomains []string

	Warnings []string
}

// Bytes renders the tree.
func (r Result) Bytes() []byte {
	return directive.Format(r.Tree)
}

// GenerateDocument compiles cfg and generates its configuration.
func GenerateDocument(ctx context.Context, cfg *config.Config) (Result, error) {
	_, span := tracer.Start(ctx, "nginxgen.compile")
	compiled, err := config.Compile(cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return Result{}, err
	}
	span.End()
	return Generate(ctx, compiled)
}

// Generate builds the full configuration tree. Upstreams are resolved before
// servers because server blocks reference upstream names. Each call starts
// anonymous upstream naming at upstream-auto-1, so identical input yields
// identical output.
func Generate(ctx context.Context, compiled config.Compiled) (Result, error) {
	ctx, span := tracer.Start(ctx, "nginxgen.generate")
	defer span.End()
	span.SetAttributes(attribute.Int("nginxgen.servers", len(compiled.Servers)))

	res, err := generate(ctx, compiled)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(
		attribute.Int("nginxgen.directives", len(res.Tree)),
		attribute.Int("nginxgen.acme_domains", len(res.ACMEDomains)),
	)
	return res, nil
}

func generate(ctx context.Context, compiled config.Compiled) (Result, error) {
	_, upSpan := tracer.Start(ctx, "nginxgen.resolve_upstreams")
	ups, err := ResolveUpstreams(compiled.Servers, 0)
	upSpan.SetAttributes(attribute.Int("nginxgen.upstreams", len(ups.Blocks)))
	upSpan.End()
	if err != nil {
		return Result{}, err
	}

	_, srvSpan := tracer.Start(ctx, "nginxgen.server_blocks")
	var (
		servers []directive.Directive
		domains []string
	)
	for _, srv := range compiled.Servers {
		blocks, domain, err := ServerBlocks(srv, ups.ByServer[srv.Name])
		if err != nil {
			srvSpan.End()
			return Result{}, err
		}
		servers = append(servers, blocks...)
		if domain != "" {
			domains = append(domains, domain)
		}
	}
	srvSpan.End()

	http := HTTPSettings(compiled.HTTPRawOptions)
	http = append(http, ups.Blocks...)
	http = append(http, servers...)

	tree := globals()
	tree = append(tree, directive.Block([]string{"http"}, http))

	return Result{
		Tree:        tree,
		ACMEDomains: domains,
		Warnings:    compiled.Warnings,
	}, nil
}
