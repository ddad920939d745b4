package nginx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nuetzliches/nginxgen/internal/config"
	"github.com/nuetzliches/nginxgen/internal/directive"
)

// ErrNotImplemented marks generator paths reserved for future upstream
// protocols.
var ErrNotImplemented = errors.New("not implemented")

// ServerBlocks returns the server blocks for one servers entry: a redirect
// block plus an HTTPS block when TLS is enabled, otherwise a single plaintext
// block. acmeDomain is set when the server requested automatic issuance.
func ServerBlocks(srv config.Server, upstreams []Upstream) (blocks []directive.Directive, acmeDomain string, err error) {
	content := make([]directive.Directive, 0, len(srv.RawOptions)+len(srv.StaticFiles)+len(upstreams)+4)
	for _, opt := range srv.RawOptions {
		content = append(content, directive.Statement(opt...))
	}
	content = append(content, StaticLocations(srv.StaticFiles)...)

	tlsDirs, acmeDomain := tlsContent(srv)
	content = append(content, tlsDirs...)

	for _, up := range upstreams {
		loc, err := proxyLocation(up)
		if err != nil {
			return nil, "", err
		}
		content = append(content, loc)
	}

	if !srv.TLS.Enabled() {
		body := []directive.Directive{directive.Comment(srv.Name)}
		body = append(body, plainListen(srv)...)
		body = append(body, headerDirectives(sharedHeaders)...)
		body = append(body, content...)
		return []directive.Directive{directive.Block([]string{"server"}, body)}, acmeDomain, nil
	}

	redirect := []directive.Directive{directive.Comment(srv.Name, "- force HTTPS")}
	redirect = append(redirect, plainListen(srv)...)
	redirect = append(redirect, directive.Statement("return", "301", "https://"+srv.ServerName+"$request_uri"))

	secure := []directive.Directive{
		directive.Comment(srv.Name),
		directive.Statement("listen", "443", "ssl", "http2", "deferred", "reuseport"),
		directive.Statement("listen", "[::]:443", "ssl", "http2", "deferred", "reuseport"),
		directive.Statement("server_name", srv.ServerName),
	}
	secure = append(secure, hostCheck(srv)...)
	secure = append(secure, headerDirectives(append([]header{hstsHeader}, sharedHeaders...))...)
	secure = append(secure, tlsHardening()...)
	secure = append(secure, content...)

	return []directive.Directive{
		directive.Block([]string{"server"}, redirect),
		directive.Block([]string{"server"}, secure),
	}, acmeDomain, nil
}

func plainListen(srv config.Server) []directive.Directive {
	out := []directive.Directive{
		directive.Statement("listen", "80", "deferred", "reuseport"),
		directive.Statement("listen", "[::]:80", "deferred", "reuseport"),
		directive.Statement("server_name", srv.ServerName),
	}
	return append(out, hostCheck(srv)...)
}

// hostCheck rejects requests whose Host header is not the configured domain.
func hostCheck(srv config.Server) []directive.Directive {
	if !srv.CheckHostHeader {
		return nil
	}
	return []directive.Directive{directive.Block(
		[]string{"if", fmt.Sprintf("($http_host !~* ^%s$)", hostPattern(srv.ServerName))},
		[]directive.Directive{directive.Statement("return", hostRejectStatus)},
	)}
}

// hostPattern turns a server_name into the body of the host guard regex.
// A wildcard label matches one or more characters and IPv6 brackets are
// matched literally. Dots stay unescaped so plain names render as before.
func hostPattern(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		switch c := name[i]; c {
		case '*':
			b.WriteString(".+")
		case '[', ']':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func headerDirectives(headers []header) []directive.Directive {
	out := make([]directive.Directive, 0, len(headers))
	for _, h := range headers {
		out = append(out, directive.Statement("add_header", h.name, h.value, "always"))
	}
	return out
}

func proxyLocation(up Upstream) (directive.Directive, error) {
	body := []directive.Directive{
		directive.Statement("proxy_set_header", "X-Request-ID", "$request_id"),
		directive.Statement("proxy_set_header", "X-Forwarded-For", "$proxy_add_x_forwarded_for"),
		directive.Statement("proxy_set_header", "Host", "$http_host"),
	}
	switch up.Type {
	case config.UpstreamUWSGI:
		body = append(body,
			directive.Statement("include", "uwsgi_params"),
			directive.Statement("uwsgi_pass", up.Name),
		)
	case config.UpstreamHTTP:
		body = append(body, directive.Statement("proxy_pass", "http://"+up.Name))
	default:
		return directive.Directive{}, fmt.Errorf("%w: %q upstream type", ErrNotImplemented, up.Type)
	}
	return directive.Block([]string{"location", up.Location}, body), nil
}
