// Package main (cmd/mockserver) runs the mock node registration server.
//
// Nodes POST their registrations to "/", which records them in memory and
// answers with the address the request came from and the refresh interval.
// GET "/" dumps everything recorded so far. "/fail", "/unauthorized" and
// "/notfound" always answer 500, 401 and 404 so clients can exercise their
// error paths.
//
// The server prefers HTTPS. On first start it writes a self-signed key pair to
// --tls-key and --tls-cert (by default /tmp/server.key and /tmp/server.crt) and
// reuses it afterwards. When the pair cannot be generated or loaded it falls
// back to plain HTTP; --no-tls forces plain HTTP.
//
// The listening port is the optional first argument and defaults to 8443:
//
//	mockserver 8443
//	mockserver --no-tls --metrics-addr= 8080
//
// Every flag can also be set through a REGMOCK_* environment variable, and a
// .env file in the working directory is loaded before flags are parsed.
package main
