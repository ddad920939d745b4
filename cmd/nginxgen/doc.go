// Command nginxgen renders an nginx configuration from a declarative
// document of servers, upstreams, TLS and static mounts.
//
// Install:
//
//	go install github.com/nuetzliches/nginxgen/cmd/nginxgen@latest
//
// Usage:
//
//	nginxgen generate --config ./appconf.yml --out /etc/nginx/nginx.conf
package main
