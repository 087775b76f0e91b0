package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ruteri/rpt-registration-mock/api"
	"github.com/ruteri/rpt-registration-mock/api/clients"
	"github.com/ruteri/rpt-registration-mock/cmd/flags"
	"github.com/urfave/cli/v2"
)

var flagServerAddr = &cli.StringFlag{
	Name:    "server",
	Value:   "https://127.0.0.1:8443",
	Usage:   "registration server base URL",
	EnvVars: []string{flags.EnvPrefix + "SERVER"},
}
var flagVerifyTLS = &cli.BoolFlag{
	Name:  "verify-tls",
	Value: false,
	Usage: "verify the server certificate",
}
var flagNode = &cli.StringSliceFlag{
	Name:     "node",
	Required: true,
	Usage:    "node number to register, repeatable",
}
var flagPasswd = &cli.StringFlag{
	Name:  "passwd",
	Usage: "registration password",
}
var flagRemote = &cli.IntFlag{
	Name:  "remote",
	Value: 0,
	Usage: "remote flag sent with every node",
}
var flagPort = &cli.IntFlag{
	Name:  "port",
	Value: api.DefaultClientPort,
	Usage: "IAX2 port announced to the server",
}
var flagPath = &cli.StringFlag{
	Name:  "path",
	Value: "/",
	Usage: "path to POST the registration to",
}

func main() {
	if err := flags.LoadDotEnv(flags.EnvFileFromArgs(os.Args)); err != nil {
		log.Fatal(err)
	}

	app := &cli.App{
		Name:  "regclient",
		Usage: "Register nodes against a registration server",
		Flags: append([]cli.Flag{flagServerAddr, flagVerifyTLS, flags.LogServiceFlagFn("regclient")}, flags.LogFlags...),
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "register nodes and print the response",
				Flags: []cli.Flag{flagNode, flagPasswd, flagRemote, flagPort, flagPath},
				Action: func(cCtx *cli.Context) error {
					nodes := api.NewNodeSet()
					for _, node := range cCtx.StringSlice(flagNode.Name) {
						nodes.Add(node, api.NodeInfo{
							Node:   node,
							Passwd: cCtx.String(flagPasswd.Name),
							Remote: cCtx.Int(flagRemote.Name),
						})
					}
					return register(cCtx.Context, newClient(cCtx), cCtx.App.Writer, cCtx.String(flagPath.Name), nodes, cCtx.Int(flagPort.Name))
				},
			},
			{
				Name:  "status",
				Usage: "print the registration table",
				Action: func(cCtx *cli.Context) error {
					return status(cCtx.Context, newClient(cCtx), cCtx.App.Writer)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newClient(cCtx *cli.Context) *clients.RegistrationClient {
	var opts []clients.ClientOption
	if !cCtx.Bool(flagVerifyTLS.Name) {
		opts = append(opts, clients.WithInsecureTLS())
	}

	logger := flags.SetupLogger(cCtx)
	logger.Debug("Using registration server", "server", cCtx.String(flagServerAddr.Name))
	return clients.NewRegistrationClient(cCtx.String(flagServerAddr.Name), opts...)
}

func register(ctx context.Context, client *clients.RegistrationClient, out io.Writer, path string, nodes *api.NodeSet, port int) error {
	var resp *api.RegistrationResponse
	var err error
	if path == "/" {
		resp, err = client.Register(ctx, nodes, port)
	} else {
		body, encErr := json.Marshal(api.RegistrationRequest{Port: &port, Data: &api.RegistrationData{Nodes: nodes}})
		if encErr != nil {
			return encErr
		}
		resp, err = client.Post(ctx, path, body)
	}

	var reqErr *clients.RequestError
	if errors.As(err, &reqErr) {
		fmt.Fprintf(out, "Not registered: %d %s\n", reqErr.StatusCode, reqErr.Message)
		return err
	} else if err != nil {
		return err
	}

	fmt.Fprintf(out, "Registered: ipaddr=%s, port=%d, refresh=%d, data=%s\n", resp.IPAddr, resp.Port, resp.Refresh, resp.Data)
	return nil
}

func status(ctx context.Context, client *clients.RegistrationClient, out io.Writer) error {
	resp, err := client.Status(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
