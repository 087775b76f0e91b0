// Package main (cmd/regclient) registers nodes against a registration server
// the way a node does, and prints what the server answered.
//
// Commands:
//
//	register - POST one or more nodes (--node, repeatable) with --passwd and
//	           --port, and print the ipaddr/port/refresh response.
//	status   - print the server's registration table (GET /).
//
// --path sends the registration to another path, e.g. /unauthorized, to see
// how a failure endpoint answers. Self-signed certificates are accepted unless
// --verify-tls is set.
//
//	regclient --server https://127.0.0.1:8443 register --node 2000 --passwd secret
//	regclient --server https://127.0.0.1:8443 status
package main
