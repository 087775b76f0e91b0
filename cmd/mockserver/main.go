package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ruteri/rpt-registration-mock/api/registrationhandler"
	"github.com/ruteri/rpt-registration-mock/api/server"
	"github.com/ruteri/rpt-registration-mock/cmd/flags"
	"github.com/ruteri/rpt-registration-mock/common"
	"github.com/ruteri/rpt-registration-mock/metrics"
	"github.com/ruteri/rpt-registration-mock/registration"
	"github.com/urfave/cli/v2"
)

const defaultPort = 8443

var ServiceLogFlag = flags.LogServiceFlagFn("registration-mock")

var ListenHostFlag = &cli.StringFlag{
	Name:    "listen-host",
	Value:   "0.0.0.0",
	Usage:   "host to listen on, the port is the first argument",
	EnvVars: []string{flags.EnvPrefix + "LISTEN_HOST"},
}
var TLSKeyFlag = &cli.StringFlag{
	Name:    "tls-key",
	Value:   "/tmp/server.key",
	Usage:   "PEM private key, generated if missing",
	EnvVars: []string{flags.EnvPrefix + "TLS_KEY"},
}
var TLSCertFlag = &cli.StringFlag{
	Name:    "tls-cert",
	Value:   "/tmp/server.crt",
	Usage:   "PEM certificate, generated if missing",
	EnvVars: []string{flags.EnvPrefix + "TLS_CERT"},
}
var GenerateCertFlag = &cli.BoolFlag{
	Name:    "generate-cert",
	Value:   true,
	Usage:   "generate a self-signed key pair when --tls-key or --tls-cert is missing",
	EnvVars: []string{flags.EnvPrefix + "GENERATE_CERT"},
}
var NoTLSFlag = &cli.BoolFlag{
	Name:    "no-tls",
	Value:   false,
	Usage:   "serve plain HTTP",
	EnvVars: []string{flags.EnvPrefix + "NO_TLS"},
}
var TrustProxyHeadersFlag = &cli.BoolFlag{
	Name:    "trust-proxy-headers",
	Value:   false,
	Usage:   "record the client address from X-Forwarded-For / X-Real-IP",
	EnvVars: []string{flags.EnvPrefix + "TRUST_PROXY_HEADERS"},
}

// listenAddr joins host with the port given as the first argument.
func listenAddr(host string, args cli.Args) (string, error) {
	port := defaultPort
	if args.Present() {
		p, err := strconv.Atoi(args.First())
		if err != nil || p < 0 || p > 65535 {
			return "", fmt.Errorf("invalid port number: %s", args.First())
		}
		port = p
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

func main() {
	if err := flags.LoadDotEnv(flags.EnvFileFromArgs(os.Args)); err != nil {
		log.Fatal(err)
	}

	app := &cli.App{
		Name:      "mockserver",
		Usage:     "Serve a mock node registration endpoint",
		ArgsUsage: "[port]",
		Flags: append([]cli.Flag{
			ListenHostFlag,
			TLSKeyFlag,
			TLSCertFlag,
			GenerateCertFlag,
			NoTLSFlag,
			TrustProxyHeadersFlag,
			ServiceLogFlag,
		}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			addr, err := listenAddr(cCtx.String(ListenHostFlag.Name), cCtx.Args())
			if err != nil {
				return err
			}

			logger := flags.SetupLogger(cCtx)

			cfg := flags.ConfigureServer(cCtx, logger, addr)
			cfg.TrustProxyHeaders = cCtx.Bool(TrustProxyHeadersFlag.Name)
			cfg.TLSCertificate = resolveTLS(logger, tlsOptions{
				Disabled: cCtx.Bool(NoTLSFlag.Name),
				Generate: cCtx.Bool(GenerateCertFlag.Name),
				KeyFile:  cCtx.String(TLSKeyFlag.Name),
				CertFile: cCtx.String(TLSCertFlag.Name),
			})

			metricsSrv, err := metrics.New(common.PackageName, cfg.MetricsAddr)
			if err != nil {
				logger.Error("Failed to create metrics server", "err", err)
				return err
			}

			store := registration.NewStore()
			srv, err := server.New(cfg, metricsSrv,
				registrationhandler.NewHandler(store, metricsSrv.Recorder(), logger),
				registrationhandler.NewFailureInjector(registrationhandler.DefaultFailureEndpoints, metricsSrv.Recorder(), logger),
			)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			scheme := "http"
			if cfg.TLSEnabled() {
				scheme = "https"
			}
			if err := srv.RunInBackground(); err != nil {
				logger.Error("Failed to start server", "err", err)
				return err
			}
			logger.Info("Mock registration server listening", "address", addr, "scheme", scheme)

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			srv.Drain()
			srv.Shutdown()

			_, total := store.Snapshot()
			logger.Info("Server shutdown complete", "registrations", store.Len(), "submissions", total)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
