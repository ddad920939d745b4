package nginx

import (
	"fmt"

	"github.com/nuetzliches/nginxgen/internal/config"
	"github.com/nuetzliches/nginxgen/internal/directive"
)

const anonymousUpstreamPrefix = "upstream-auto-"

// Upstream is a resolved backend pool referenced by a server's proxy
// location.
type Upstream struct {
	Name     string
	Location string
	Type     config.UpstreamType
	Address  string
}

// UpstreamSet is the result of one resolution pass over a document.
type UpstreamSet struct {
	// Blocks holds one "upstream <name> { server <address>; }" block per
	// backend, in encounter order.
	Blocks []directive.Directive
	// ByServer maps a servers entry name to its resolved upstreams.
	ByServer map[string][]Upstream
	// Counter is the anonymous-name counter after the pass.
	Counter int
}

// ResolveUpstreams names every declared backend and builds its upstream
// block. A server whose only upstream is a bare URL gets "<server>-upstream".
// Any other unnamed entry gets "upstream-auto-N", where N continues from
// counter across all servers in document order.
func ResolveUpstreams(servers []config.Server, counter int) (UpstreamSet, error) {
	set := UpstreamSet{
		ByServer: make(map[string][]Upstream, len(servers)),
		Counter:  counter,
	}
	owner := make(map[string]string)

	for _, srv := range servers {
		for _, decl := range srv.Upstreams {
			name := decl.Name
			switch {
			case name == "" && decl.Bare && len(srv.Upstreams) == 1:
				name = srv.Name + "-upstream"
			case name == "":
				set.Counter++
				name = fmt.Sprintf("%s%d", anonymousUpstreamPrefix, set.Counter)
			}
			if prev, dup := owner[name]; dup {
				return UpstreamSet{}, &config.Error{
					Kind:  config.KindConflict,
					Field: "servers." + srv.Name + ".upstream",
					Msg:   fmt.Sprintf("servers.%s.upstream: upstream name %q is already used by servers.%s", srv.Name, name, prev),
				}
			}
			owner[name] = srv.Name

			up := Upstream{
				Name:     name,
				Location: decl.Location,
				Type:     decl.Type,
				Address:  decl.Address,
			}
			set.Blocks = append(set.Blocks, directive.Block(
				[]string{"upstream", up.Name},
				[]directive.Directive{directive.Statement("server", up.Address)},
			))
			set.ByServer[srv.Name] = append(set.ByServer[srv.Name], up)
		}
	}
	return set, nil
}
