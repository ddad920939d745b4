package nginx

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nuetzliches/nginxgen/internal/config"
	"github.com/nuetzliches/nginxgen/internal/directive"
)

func generateYAML(t *testing.T, in string) Result {
	t.Helper()
	cfg, err := config.Parse([]byte(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res, err := GenerateDocument(context.Background(), cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return res
}

// httpBlock returns the children of the top-level http block.
func httpBlock(t *testing.T, res Result) []directive.Directive {
	t.Helper()
	d, ok := directive.Find(res.Tree, "http")
	if !ok || !d.IsBlock() {
		t.Fatalf("no http block in tree")
	}
	return d.Children
}

func serverBlocks(t *testing.T, res Result) []directive.Directive {
	t.Helper()
	return directive.FindAll(httpBlock(t, res), "server")
}

func hasStatement(dirs []directive.Directive, tokens ...string) bool {
	want := strings.Join(tokens, " ")
	for _, d := range dirs {
		if d.Kind == directive.KindStatement && strings.Join(d.Tokens, " ") == want {
			return true
		}
	}
	return false
}

func TestStaticLocations_DefaultMount(t *testing.T) {
	dirs := StaticLocations([]config.StaticMount{{Path: "/srv/static", Location: config.DefaultStaticLocation}})
	got := string(directive.Format(dirs))
	want := "location /static {\n  alias /srv/static;\n}\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStaticLocations_SPAAndIndex(t *testing.T) {
	dirs := StaticLocations([]config.StaticMount{
		{Path: "/srv/app", Location: "/", SPA: "/index.html"},
		{Path: "/srv/docs", Location: "/docs", Index: "index.html"},
	})
	got := string(directive.Format(dirs))
	want := strings.Join([]string{
		"location / {",
		"  root /srv/app;",
		"  try_files $uri /index.html;",
		"}",
		"location /docs {",
		"  alias /srv/docs;",
		"  index index.html;",
		"}",
		"",
	}, "\n")
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestResolveUpstreams_Naming(t *testing.T) {
	servers := []config.Server{
		{Name: "app", Upstreams: []config.UpstreamSpec{
			{Location: "/api", Type: config.UpstreamHTTP, Address: "10.0.0.1:80"},
			{Location: "/ws", Type: config.UpstreamHTTP, Address: "10.0.0.2:80"},
		}},
		{Name: "blog", Upstreams: []config.UpstreamSpec{
			{Bare: true, Location: "/", Type: config.UpstreamUWSGI, Address: "127.0.0.1:3031"},
		}},
		{Name: "shop", Upstreams: []config.UpstreamSpec{
			{Name: "shop-backend", Location: "/", Type: config.UpstreamHTTP, Address: "10.0.0.3:80"},
			{Location: "/admin", Type: config.UpstreamHTTP, Address: "10.0.0.4:80"},
		}},
	}
	set, err := ResolveUpstreams(servers, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var names []string
	for _, b := range set.Blocks {
		names = append(names, b.Tokens[1])
	}
	want := "upstream-auto-1,upstream-auto-2,blog-upstream,shop-backend,upstream-auto-3"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("names = %s, want %s", got, want)
	}
	if set.Counter != 3 {
		t.Fatalf("counter = %d", set.Counter)
	}
	if got := set.ByServer["app"][1]; got.Name != "upstream-auto-2" || got.Location != "/ws" {
		t.Fatalf("app[1] = %#v", got)
	}
	if got := string(directive.Format(set.Blocks[:1])); got != "upstream upstream-auto-1 {\n  server 10.0.0.1:80;\n}\n" {
		t.Fatalf("block = %q", got)
	}
}

func TestResolveUpstreams_CounterContinues(t *testing.T) {
	servers := []config.Server{{Name: "app", Upstreams: []config.UpstreamSpec{{Location: "/", Type: config.UpstreamHTTP, Address: "a"}}}}
	set, err := ResolveUpstreams(servers, 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if set.ByServer["app"][0].Name != "upstream-auto-8" {
		t.Fatalf("name = %s", set.ByServer["app"][0].Name)
	}
}

func TestResolveUpstreams_MultipleBareURLs(t *testing.T) {
	servers := []config.Server{
		{Name: "app", Upstreams: []config.UpstreamSpec{
			{Bare: true, Location: "/", Type: config.UpstreamHTTP, Address: "10.0.0.1:80"},
			{Bare: true, Location: "/", Type: config.UpstreamHTTP, Address: "10.0.0.2:80"},
		}},
		{Name: "blog", Upstreams: []config.UpstreamSpec{
			{Bare: true, Location: "/", Type: config.UpstreamHTTP, Address: "10.0.0.3:80"},
		}},
	}
	set, err := ResolveUpstreams(servers, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var names []string
	for _, b := range set.Blocks {
		names = append(names, b.Tokens[1])
	}
	want := "upstream-auto-1,upstream-auto-2,blog-upstream"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("names = %s, want %s", got, want)
	}
	if set.Counter != 2 {
		t.Fatalf("counter = %d", set.Counter)
	}
}

func TestGenerate_BareURLList(t *testing.T) {
	res := generateYAML(t, `
servers:
  app:
    server_name: example.com
    tls: false
    upstream:
      - http://10.0.0.1:80
      - http://10.0.0.2:80
`)
	out := string(res.Bytes())
	for _, want := range []string{
		"upstream upstream-auto-1 {\n    server 10.0.0.1:80;\n  }",
		"upstream upstream-auto-2 {\n    server 10.0.0.2:80;\n  }",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "app-upstream") {
		t.Fatalf("bare list must not use the single-upstream name:\n%s", out)
	}
}

func TestResolveUpstreams_DuplicateName(t *testing.T) {
	servers := []config.Server{
		{Name: "a", Upstreams: []config.UpstreamSpec{{Name: "pool", Location: "/", Type: config.UpstreamHTTP, Address: "x"}}},
		{Name: "b", Upstreams: []config.UpstreamSpec{{Name: "pool", Location: "/", Type: config.UpstreamHTTP, Address: "y"}}},
	}
	_, err := ResolveUpstreams(servers, 0)
	if !config.IsKind(err, config.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestGenerate_TLSDisabled(t *testing.T) {
	res := generateYAML(t, `
servers:
  app:
    server_name: example.com
    tls: false
    upstream: http://127.0.0.1:8000
`)
	blocks := serverBlocks(t, res)
	if len(blocks) != 1 {
		t.Fatalf("server blocks = %d", len(blocks))
	}
	out := string(res.Bytes())
	for _, forbidden := range []string{"Strict-Transport-Security", "return 301", "ssl_certificate", "listen 443"} {
		if strings.Contains(out, forbidden) {
			t.Fatalf("unexpected %q in output:\n%s", forbidden, out)
		}
	}
	body := blocks[0].Children
	if body[0].Kind != directive.KindComment || strings.Join(body[0].Tokens, " ") != "# app" {
		t.Fatalf("first directive = %#v", body[0])
	}
	if !hasStatement(body, "add_header", "X-Frame-Options", "sameorigin", "always") {
		t.Fatalf("missing shared header")
	}
	if len(res.ACMEDomains) != 0 {
		t.Fatalf("acme domains = %q", res.ACMEDomains)
	}
}

func TestGenerate_TLSAuto(t *testing.T) {
	res := generateYAML(t, `
servers:
  app:
    server_name: example.com
    tls: auto
`)
	blocks := serverBlocks(t, res)
	if len(blocks) != 2 {
		t.Fatalf("server blocks = %d", len(blocks))
	}

	redirect := blocks[0].Children
	if strings.Join(redirect[0].Tokens, " ") != "# app - force HTTPS" {
		t.Fatalf("redirect comment = %q", redirect[0].Tokens)
	}
	if !hasStatement(redirect, "return", "301", "https://example.com$request_uri") {
		t.Fatalf("redirect block lacks return 301")
	}

	secure := blocks[1].Children
	for _, want := range [][]string{
		{"listen", "443", "ssl", "http2", "deferred", "reuseport"},
		{"ssl_certificate", "/etc/nginx/certs/live/example.com/fullchain.pem"},
		{"ssl_certificate_key", "/etc/nginx/certs/live/example.com/privkey.pem"},
		{"ssl_trusted_certificate", "/etc/nginx/certs/live/example.com/chain.pem"},
		{"add_header", "Strict-Transport-Security", "max-age=63072000", "always"},
		{"ssl_protocols", "TLSv1.2"},
	} {
		if !hasStatement(secure, want...) {
			t.Fatalf("https block lacks %q", want)
		}
	}
	acme, ok := directive.Find(secure, "location")
	if !ok || acme.Tokens[1] != "/.well-known/acme-challenge" || !hasStatement(acme.Children, "root", "/var/www/letsencrypt") {
		t.Fatalf("acme challenge location = %#v", acme)
	}
	if len(res.ACMEDomains) != 1 || res.ACMEDomains[0] != "example.com" {
		t.Fatalf("acme domains = %q", res.ACMEDomains)
	}
}

func TestGenerate_TLSAbsentMeansAuto(t *testing.T) {
	res := generateYAML(t, "servers:\n  app:\n    server_name: example.com\n")
	if len(serverBlocks(t, res)) != 2 || len(res.ACMEDomains) != 1 {
		t.Fatalf("absent tls should behave like auto")
	}
}

func TestGenerate_CertificateList(t *testing.T) {
	res := generateYAML(t, `
servers:
  app:
    server_name: example.com
    tls:
      - certificate: rsa.crt
        key: rsa.key
      - certificate: ecdsa.crt
        key: ecdsa.key
        root_chain: chain.pem
`)
	secure := serverBlocks(t, res)[1].Children
	certs := directive.FindAll(secure, "ssl_certificate")
	if len(certs) != 2 || certs[0].Tokens[1] != "/etc/nginx/certs/rsa.crt" || certs[1].Tokens[1] != "/etc/nginx/certs/ecdsa.crt" {
		t.Fatalf("certs = %#v", certs)
	}
	if len(directive.FindAll(secure, "ssl_trusted_certificate")) != 1 {
		t.Fatalf("expected one trusted certificate")
	}
	if _, ok := directive.Find(secure, "location"); ok {
		t.Fatalf("no acme location expected for literal certificates")
	}
	if len(res.ACMEDomains) != 0 {
		t.Fatalf("acme domains = %q", res.ACMEDomains)
	}
}

func TestGenerate_HostCheck(t *testing.T) {
	guard := "if ($http_host !~* ^example.com$) {\n    return 444;\n  }"

	res := generateYAML(t, "servers:\n  app:\n    server_name: example.com\n")
	for i, b := range serverBlocks(t, res) {
		if !strings.Contains(string(directive.Format([]directive.Directive{b})), guard) {
			t.Fatalf("server block %d lacks host guard", i)
		}
	}

	res = generateYAML(t, "servers:\n  app:\n    server_name: example.com\n    tls: false\n")
	if !strings.Contains(string(directive.Format(serverBlocks(t, res))), guard) {
		t.Fatalf("plaintext block lacks host guard")
	}

	res = generateYAML(t, "servers:\n  app:\n    server_name: example.com\n    check_host_header: false\n")
	if strings.Contains(string(res.Bytes()), "$http_host !~*") {
		t.Fatalf("host guard should be absent")
	}
}

func TestGenerate_HostCheckWildcard(t *testing.T) {
	cases := map[string]string{
		"example.com":   "^example.com$",
		"*.example.com": "^.+.example.com$",
		"[::1]":         `^\[::1\]$`,
	}
	for name, pattern := range cases {
		res := generateYAML(t, "servers:\n  app:\n    server_name: \""+name+"\"\n    tls: false\n")
		want := "if ($http_host !~* " + pattern + ") {"
		if out := string(res.Bytes()); !strings.Contains(out, want) {
			t.Fatalf("%s: missing %q in output:\n%s", name, want, out)
		}
	}
}

func TestGenerate_ProxyLocations(t *testing.T) {
	res := generateYAML(t, `
servers:
  app:
    server_name: example.com
    tls: false
    upstream:
      - url: uwsgi://127.0.0.1:3031
        location: /api
      - name: web
        url: http://10.0.0.2:8080
`)
	out := string(res.Bytes())
	want := strings.Join([]string{
		"    location /api {",
		"      proxy_set_header X-Request-ID $request_id;",
		"      proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;",
		"      proxy_set_header Host $http_host;",
		"      include uwsgi_params;",
		"      uwsgi_pass upstream-auto-1;",
		"    }",
		"    location / {",
		"      proxy_set_header X-Request-ID $request_id;",
		"      proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;",
		"      proxy_set_header Host $http_host;",
		"      proxy_pass http://web;",
		"    }",
	}, "\n")
	if !strings.Contains(out, want) {
		t.Fatalf("proxy locations not found in:\n%s", out)
	}
	upIdx := strings.Index(out, "  upstream upstream-auto-1 {")
	srvIdx := strings.Index(out, "  server {")
	if upIdx < 0 || srvIdx < 0 || upIdx > srvIdx {
		t.Fatalf("upstream blocks must precede server blocks:\n%s", out)
	}
}

func TestServerBlocks_UnimplementedUpstreamType(t *testing.T) {
	srv := config.Server{Name: "app", ServerName: "example.com", TLS: config.TLS{Mode: config.TLSDisabled}}
	_, _, err := ServerBlocks(srv, []Upstream{{Name: "x", Location: "/", Type: "fastcgi", Address: "a"}})
	if !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
	if !strings.Contains(err.Error(), "fastcgi") {
		t.Fatalf("error should name the type: %v", err)
	}
}

func TestGenerate_ServerContentOrder(t *testing.T) {
	res := generateYAML(t, `
servers:
  app:
    server_name: example.com
    tls: false
    upstream: http://127.0.0.1:8000
    static_files: /srv/static
    server_raw_options:
      - client_max_body_size 10m
`)
	body := serverBlocks(t, res)[0].Children
	var order []string
	for _, d := range body {
		switch {
		case d.Name() == "client_max_body_size":
			order = append(order, "raw")
		case d.Name() == "location" && d.Tokens[1] == "/static":
			order = append(order, "static")
		case d.Name() == "location" && d.Tokens[1] == "/":
			order = append(order, "proxy")
		}
	}
	if got := strings.Join(order, ","); got != "raw,static,proxy" {
		t.Fatalf("content order = %s", got)
	}
}

func TestHTTPSettings_OverrideReplacesInPlace(t *testing.T) {
	base := httpBaseline()
	settings := HTTPSettings([][]string{{"gzip", "off"}})
	if len(settings) != len(base) {
		t.Fatalf("override must not add entries: %d vs %d", len(settings), len(base))
	}
	idx := -1
	for i, d := range base {
		if d.Name() == "gzip" {
			idx = i
		}
	}
	if strings.Join(settings[idx].Tokens, " ") != "gzip off" {
		t.Fatalf("entry %d = %q", idx, settings[idx].Tokens)
	}
	if len(directive.FindAll(settings, "gzip")) != 1 {
		t.Fatalf("gzip duplicated")
	}
}

func TestHTTPSettings_IncludesAlwaysAppend(t *testing.T) {
	base := httpBaseline()
	settings := HTTPSettings([][]string{
		{"include", "/etc/nginx/conf.d/a.conf"},
		{"include", "/etc/nginx/conf.d/b.conf"},
		{"client_max_body_size", "20m"},
	})
	if len(settings) != len(base)+3 {
		t.Fatalf("settings = %d, want %d", len(settings), len(base)+3)
	}
	incs := directive.FindAll(settings, "include")
	if len(incs) != 3 {
		t.Fatalf("includes = %d (baseline mime.types plus two)", len(incs))
	}
	if incs[0].Tokens[1] != "/etc/nginx/mime.types" || incs[2].Tokens[1] != "/etc/nginx/conf.d/b.conf" {
		t.Fatalf("includes = %#v", incs)
	}
}

func TestHTTPSettings_AppendedEntryCanBeReplaced(t *testing.T) {
	settings := HTTPSettings([][]string{{"client_max_body_size", "20m"}, {"client_max_body_size", "30m"}})
	got := directive.FindAll(settings, "client_max_body_size")
	if len(got) != 1 || got[0].Tokens[1] != "30m" {
		t.Fatalf("client_max_body_size = %#v", got)
	}
}

const sampleDocument = `
servers:
  app:
    server_name: example.com
    upstream:
      - url: http://10.0.0.1:8000
        location: /api
      - url: http://10.0.0.2:8000
        location: /ws
    static_files:
      path: /srv/app
      location: /
      spa: /index.html
  legacy:
    server_name: legacy.example.com
    tls: false
    upstream: uwsgi://127.0.0.1:3031
http_raw_options:
  - gzip off
`

func TestGenerate_Deterministic(t *testing.T) {
	a := generateYAML(t, sampleDocument)
	b := generateYAML(t, sampleDocument)
	if string(a.Bytes()) != string(b.Bytes()) {
		t.Fatalf("output differs between runs")
	}
	if !strings.Contains(string(a.Bytes()), "upstream upstream-auto-1 {") {
		t.Fatalf("each run must restart anonymous naming")
	}
}

func TestGenerate_DocumentLayout(t *testing.T) {
	out := string(generateYAML(t, sampleDocument).Bytes())
	lines := strings.Split(out, "\n")
	if lines[0] != "# Auto-generated by nginxgen" {
		t.Fatalf("first line = %q", lines[0])
	}
	for _, want := range []string{
		"user nginx;",
		"events {",
		"  worker_connections 2048;",
		"http {",
		"  gzip off;",
		"  upstream legacy-upstream {",
		"    server 127.0.0.1:3031;",
		"    # app - force HTTPS",
		"    # legacy",
		"    location / {\n      root /srv/app;\n      try_files $uri /index.html;\n    }",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output lacks %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Fatalf("output must end with the closing http brace")
	}
}

func TestDiffDocuments(t *testing.T) {
	oldCfg, err := config.Parse([]byte("servers:\n  app:\n    server_name: example.com\n    tls: false\n"))
	if err != nil {
		t.Fatal(err)
	}
	newCfg, err := config.Parse([]byte("servers:\n  app:\n    server_name: example.com\n    tls: false\nhttp_raw_options:\n  - gzip off\n"))
	if err != nil {
		t.Fatal(err)
	}

	diff, err := DiffDocuments(context.Background(), oldCfg, newCfg, 1, "old.yml", "new.yml")
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !strings.HasPrefix(diff, "--- old.yml\n+++ new.yml\n@@ ") {
		t.Fatalf("diff header = %q", diff)
	}
	if !strings.Contains(diff, "-  gzip on;\n+  gzip off;") {
		t.Fatalf("diff body:\n%s", diff)
	}

	same, err := DiffDocuments(context.Background(), oldCfg, oldCfg, 3, "a", "b")
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if same != "" {
		t.Fatalf("expected empty diff, got %q", same)
	}
}
