package main

import (
	"crypto/tls"
	"log/slog"

	"github.com/ruteri/rpt-registration-mock/cryptoutils"
)

type tlsOptions struct {
	Disabled bool
	Generate bool
	KeyFile  string
	CertFile string
}

// resolveTLS decides once, before the listener starts, whether the server
// speaks HTTPS. A nil certificate means plain HTTP.
func resolveTLS(log *slog.Logger, opts tlsOptions) *tls.Certificate {
	if opts.Disabled {
		log.Info("TLS disabled, using HTTP")
		return nil
	}

	if opts.Generate {
		created, err := cryptoutils.EnsureKeyPair(opts.KeyFile, opts.CertFile)
		if err != nil {
			log.Warn("Could not generate TLS certificate, running in HTTP mode instead", "err", err)
			return nil
		}
		if created {
			log.Info("Generated self-signed certificate", "key", opts.KeyFile, "cert", opts.CertFile)
		}
	}

	cert, err := cryptoutils.LoadKeyPair(opts.KeyFile, opts.CertFile)
	if err != nil {
		log.Warn("TLS not available, using HTTP instead", "err", err)
		return nil
	}

	// Material that loads is served as is; a mismatch is only reported.
	if err := cryptoutils.VerifyKeyPairFiles(opts.KeyFile, opts.CertFile, cryptoutils.DefaultCommonName); err != nil {
		log.Warn("TLS certificate does not look like the generated one", "err", err, "cert", opts.CertFile)
	}
	return cert
}
