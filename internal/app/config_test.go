package app

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nuetzliches/nginxgen/internal/config"
)

func TestValidateCmd_JSONOK(t *testing.T) {
	cfg := writeDocument(t, t.TempDir(), "appconf.yml", plainDocument)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := runValidateCmd([]string{"--config", cfg}, stdout, stderr)
	if code != exitOK {
		t.Fatalf("exit = %d, stderr = %s", code, stderr.String())
	}
	var res config.ValidationResult
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v (%s)", err, stdout.String())
	}
	if !res.OK {
		t.Fatalf("expected ok result, got %#v", res)
	}
}

func TestValidateCmd_JSONInvalid(t *testing.T) {
	cfg := writeDocument(t, t.TempDir(), "appconf.yml", "servers:\n  app:\n    server_name: example.com\n    upstream: 127.0.0.1:8000\n")

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := runValidateCmd([]string{"--config", cfg, "--format", "json"}, stdout, stderr)
	if code != exitFailure {
		t.Fatalf("exit = %d", code)
	}
	if stdout.Len() != 0 {
		t.Fatalf("stdout = %q", stdout.String())
	}
	var res config.ValidationResult
	if err := json.Unmarshal(stderr.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v (%s)", err, stderr.String())
	}
	if res.OK || res.Kind != "upstream_url" {
		t.Fatalf("result = %#v", res)
	}
	if !strings.Contains(res.Errors[0], "please prefix servers.app.upstream url with protocol name") {
		t.Fatalf("errors = %q", res.Errors)
	}
}

func TestValidateCmd_TextWithWarnings(t *testing.T) {
	doc := `
servers:
  a:
    server_name: a.example.com
  b:
    server_name: b.example.com
`
	cfg := writeDocument(t, t.TempDir(), "appconf.yml", doc)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := runValidateCmd([]string{"--config", cfg, "--format", "text"}, stdout, stderr)
	if code != exitOK {
		t.Fatalf("exit = %d, stderr = %s", code, stderr.String())
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if lines[0] != "document ok (warnings: 1)" || !strings.HasPrefix(lines[1], "warning: ") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestValidateCmd_GenerationConflict(t *testing.T) {
	doc := `
servers:
  a:
    server_name: a.example.com
    tls: false
    upstream:
      - name: pool
        url: http://10.0.0.1
  b:
    server_name: b.example.com
    tls: false
    upstream:
      - name: pool
        url: http://10.0.0.2
`
	cfg := writeDocument(t, t.TempDir(), "appconf.yml", doc)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := runValidateCmd([]string{"--config", cfg, "--format", "text"}, stdout, stderr)
	if code != exitFailure {
		t.Fatalf("exit = %d", code)
	}
	if !strings.HasPrefix(stderr.String(), "document invalid: ") || !strings.Contains(stderr.String(), `"pool"`) {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestValidateCmd_MissingFile(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := runValidateCmd([]string{"--config", filepath.Join(t.TempDir(), "nope.yml"), "--format", "text"}, stdout, stderr)
	if code != exitFailure {
		t.Fatalf("exit = %d", code)
	}
	if !strings.HasPrefix(stderr.String(), "document invalid: ") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestValidateCmd_BadFormat(t *testing.T) {
	code := runValidateCmd([]string{"--format", "yaml"}, &bytes.Buffer{}, &bytes.Buffer{})
	if code != exitUsage {
		t.Fatalf("exit = %d", code)
	}
}

func TestDiffCmd(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeDocument(t, dir, "old.yml", plainDocument)
	newPath := writeDocument(t, dir, "new.yml", plainDocument+"http_raw_options:\n  - gzip off\n")

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := runDiffCmd([]string{"--context", "1", oldPath, newPath}, stdout, stderr)
	if code != exitFailure {
		t.Fatalf("exit = %d, stderr = %s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.HasPrefix(out, "--- "+oldPath+"\n+++ "+newPath+"\n") {
		t.Fatalf("diff header = %q", out)
	}
	if !strings.Contains(out, "-  gzip on;\n+  gzip off;\n") {
		t.Fatalf("diff = %s", out)
	}

	stdout.Reset()
	code = runDiffCmd([]string{oldPath, oldPath}, stdout, stderr)
	if code != exitOK || stdout.Len() != 0 {
		t.Fatalf("identical documents: exit = %d, stdout = %q", code, stdout.String())
	}
}

func TestDiffCmd_Usage(t *testing.T) {
	if code := runDiffCmd([]string{"only-one"}, &bytes.Buffer{}, &bytes.Buffer{}); code != exitUsage {
		t.Fatalf("exit = %d", code)
	}
	missing := filepath.Join(t.TempDir(), "missing.yml")
	stderr := &bytes.Buffer{}
	if code := runDiffCmd([]string{missing, missing}, &bytes.Buffer{}, stderr); code != exitMissingInput {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(stderr.String(), "Did you forget to mount it?") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}
