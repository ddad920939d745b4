package nginx

import (
	"strings"

	"github.com/nuetzliches/nginxgen/internal/directive"
)

const (
	certDir          = "/etc/nginx/certs"
	acmeChallengeLoc = "/.well-known/acme-challenge"
	acmeWebroot      = "/var/www/letsencrypt"

	// hostRejectStatus closes the connection without a response.
	hostRejectStatus = "444"
)

var gzipTypes = []string{
	"text/plain",
	"text/xml",
	"text/css",
	"application/x-javascript",
	"application/javascript",
	"application/ecmascript",
	"application/rss+xml",
	"application/xml",
	"application/json",
}

type header struct {
	name  string
	value string
}

// sharedHeaders are sent by every server variant.
var sharedHeaders = []header{
	{"X-Frame-Options", "sameorigin"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-XSS-Protection", `"1; mode=block"`},
}

var hstsHeader = header{"Strict-Transport-Security", "max-age=63072000"}

var tlsCiphers = []string{
	"ECDHE-RSA-CHACHA20-POLY1305",
	"ECDHE-RSA-AES256-GCM-SHA512",
	"ECDHE-RSA-AES256-GCM-SHA384",
	"ECDHE-RSA-AES128-GCM-SHA256",
	"DHE-RSA-AES256-GCM-SHA512",
	"DHE-RSA-AES256-GCM-SHA384",
	"DHE-RSA-AES128-GCM-SHA256",
	"ECDHE-RSA-AES256-SHA384",
	"ECDHE-RSA-AES128-SHA256",
}

const logFormatMain = `'$remote_addr - $remote_user [$time_local] "$request" $status $body_bytes_sent "$http_referer" ` +
	`"$http_user_agent" "$request_time $upstream_connect_time $upstream_header_time $upstream_response_time" ` +
	`$upstream_addr $upstream_status$ssl_protocol/$ssl_session_reused/$ssl_cipher ` +
	`$connection/$connection_requests $gzip_ratio $request_id'`

// globals returns the top-level directives wrapped around the http block.
func globals() []directive.Directive {
	return []directive.Directive{
		directive.Comment("Auto-generated by nginxgen"),
		directive.Statement("user", "nginx"),
		directive.Statement("worker_processes", "auto"),
		directive.Statement("worker_cpu_affinity", "auto"),
		directive.Statement("error_log", "/var/log/nginx/error.log", "warn"),
		directive.Statement("pid", "/var/run/nginx.pid"),
		directive.Block([]string{"events"}, []directive.Directive{
			directive.Statement("worker_connections", "2048"),
			directive.Statement("multi_accept", "on"),
		}),
	}
}

// httpBaseline returns a fresh copy of the default http-level settings.
func httpBaseline() []directive.Directive {
	return []directive.Directive{
		directive.Statement("server_tokens", "off"),

		directive.Statement("include", "/etc/nginx/mime.types"),
		directive.Statement("default_type", "application/octet-stream"),

		directive.Statement("log_format", "main", logFormatMain),
		directive.Statement("access_log", "/var/log/nginx/access.log", "main", "buffer=64k", "flush=3s"),
		directive.Statement("error_log", "/var/log/nginx/error.log", "warn"),

		directive.Statement("gzip", "on"),
		directive.Statement("gzip_min_length", "1000"),
		directive.Statement("gzip_static", "on"),
		directive.Statement(append([]string{"gzip_types"}, gzipTypes...)...),
		directive.Statement("gzip_vary", "on"),

		directive.Statement("sendfile", "on"),
		directive.Statement("tcp_nopush", "on"),
		directive.Statement("tcp_nodelay", "on"),
		directive.Statement("keepalive_timeout", "65"),
		directive.Statement("keepalive_requests", "1000"),
		directive.Statement("postpone_output", "1460"),
		directive.Statement("reset_timedout_connection", "on"),

		directive.Statement("open_file_cache", "max=10000", "inactive=20s"),
		directive.Statement("open_file_cache_valid", "30s"),
		directive.Statement("open_file_cache_min_uses", "2"),
		directive.Statement("open_file_cache_errors", "on"),
	}
}

// tlsHardening is appended to every HTTPS server before its own content.
func tlsHardening() []directive.Directive {
	return []directive.Directive{
		directive.Statement("ssl_protocols", "TLSv1.2"),

		directive.Statement("ssl_prefer_server_ciphers", "on"),
		directive.Statement("ssl_ciphers", strings.Join(tlsCiphers, ":")),
		directive.Statement("ssl_dhparam", "/etc/ssl/dhparam-2048.pem"),

		directive.Statement("ssl_session_timeout", "1d"),
		directive.Statement("ssl_session_cache", "shared:SSL:50m"),
		directive.Statement("ssl_session_tickets", "off"),

		directive.Statement("ssl_stapling", "on"),
		directive.Statement("ssl_stapling_verify", "on"),
		directive.Statement("resolver", "8.8.8.8", "8.8.4.4", "valid=300s"),
		directive.Statement("resolver_timeout", "5s"),
	}
}
