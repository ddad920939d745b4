/*
Package nginxgen documents the nginxgen module.

This module is CLI-first and ships the nginxgen command:

	go install github.com/nuetzliches/nginxgen/cmd/nginxgen@latest

The generator, the input document model and the issuance recorders live in
internal packages and are not a stable public Go API.
*/
package nginxgen
