// Package issuance hands the domains of servers that requested automatic
// certificates to whatever performs the issuance.
//
// The generator never talks to a certificate authority. It records the
// domains; an external ACME client picks them up and writes the certificate
// files to the paths the generated configuration already references.
package issuance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nuetzliches/nginxgen/internal/fsutil"
)

// DefaultDomainFile is where the file recorder writes by default.
const DefaultDomainFile = "/tmp/le-domain.txt"

// Recorder receives the domains of one successful generation, in document
// order.
type Recorder interface {
	Record(ctx context.Context, domains []string) error
}

// Request is one recorded issuance request.
type Request struct {
	Domain      string
	RequestedAt time.Time
}

// FileRecorder writes a single domain to Path. When several servers ask for
// automatic issuance only the last one is kept, which is the contract the
// companion ACME script expects.
type FileRecorder struct {
	Path string
}

func (r FileRecorder) Record(_ context.Context, domains []string) error {
	if len(domains) == 0 {
		return nil
	}
	path := strings.TrimSpace(r.Path)
	if path == "" {
		path = DefaultDomainFile
	}
	return fsutil.WriteFileAtomic(path, []byte(domains[len(domains)-1]), 0o644)
}

// MultiRecorder fans a record call out to every recorder and joins their
// errors.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, domains []string) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, domains); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	seen := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
