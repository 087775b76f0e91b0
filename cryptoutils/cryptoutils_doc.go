/*
Package cryptoutils provides the TLS material for the mock registration server.

The server wants HTTPS but must never refuse to start for lack of a
certificate. EnsureKeyPair writes a self-signed certificate and key to disk the
first time it runs and leaves existing files alone afterwards; LoadKeyPair
turns them into a tls.Certificate. Whether TLS is served is decided once, at
startup, from whether LoadKeyPair succeeded.

RandomCert produces an in-memory certificate for callers that do not need the
files.
*/
package cryptoutils
