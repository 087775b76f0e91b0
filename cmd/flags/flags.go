package flags

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/ruteri/rpt-registration-mock/api"
	"github.com/ruteri/rpt-registration-mock/common"
	"github.com/urfave/cli/v2"
)

// EnvPrefix prefixes every environment variable the binaries read.
const EnvPrefix = "REGMOCK_"

func envVars(name string) []string {
	return []string{EnvPrefix + name}
}

// LoadDotEnv loads path into the environment if it exists, so flag EnvVars
// can be kept in a file next to the binary.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// EnvFileFromArgs returns the --env-file value given in args, falling back to
// REGMOCK_ENV_FILE and then to the flag default. Flags read their EnvVars
// while parsing, so the file must be loaded before the app runs.
func EnvFileFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name != EnvFileFlag.Name {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	if path := os.Getenv(EnvFileFlag.EnvVars[0]); path != "" {
		return path
	}
	return EnvFileFlag.Value
}

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// EnvFileFlag names a dotenv file with REGMOCK_* settings. It is read by
// EnvFileFromArgs ahead of flag parsing; a missing file is ignored.
var EnvFileFlag = &cli.StringFlag{
	Name:    "env-file",
	Value:   ".env",
	Usage:   "dotenv file to load REGMOCK_* settings from, if it exists",
	EnvVars: envVars("ENV_FILE"),
}

var LogJsonFlag = &cli.BoolFlag{
	Name:    "log-json",
	Value:   false,
	Usage:   "log in JSON format",
	EnvVars: envVars("LOG_JSON"),
}
var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	Value:   false,
	Usage:   "log debug messages",
	EnvVars: envVars("LOG_DEBUG"),
}
var LogUidFlag = &cli.BoolFlag{
	Name:    "log-uid",
	Value:   false,
	Usage:   "generate a uuid and add to all log messages",
	EnvVars: envVars("LOG_UID"),
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "log-service",
		Value:   service,
		Usage:   "add 'service' tag to logs",
		EnvVars: envVars("LOG_SERVICE"),
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:    "pprof",
	Value:   false,
	Usage:   "enable pprof debug endpoint",
	EnvVars: envVars("PPROF"),
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:    "drain-seconds",
	Value:   0,
	Usage:   "seconds to wait after marking the server not ready before shutting down",
	EnvVars: envVars("DRAIN_SECONDS"),
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics, empty to disable",
	EnvVars: envVars("METRICS_ADDR"),
}

var CommonFlags = []cli.Flag{
	EnvFileFlag,
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}

// LogFlags are the flags for binaries that do not run a server.
var LogFlags = []cli.Flag{
	EnvFileFlag,
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
}
