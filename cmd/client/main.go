// Command client runs a dato client coordinator, exposing write/read
// operations over an HTTP/SSE API backed by a fan-out to every registered
// validator.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/chainbound/dato/client"
	"github.com/chainbound/dato/internal/config"
	"github.com/chainbound/dato/internal/gethlog"
	"github.com/chainbound/dato/registry"
)

var log = gethlog.New("module", "cmd/client")

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to a client TOML config file; overrides other flags when set",
	}
	registryPathFlag = &cli.StringFlag{
		Name:  "registry-path",
		Usage: "path to the flat-file validator registry",
	}
	apiPortFlag = &cli.IntFlag{
		Name:  "api-port",
		Usage: "port the client's HTTP API listens on",
		Value: 8080,
	}
)

var app = &cli.App{
	Name:  "client",
	Usage: "run a dato client coordinator",
	Flags: []cli.Flag{configFlag, registryPathFlag, apiPortFlag},
	Action: func(ctx *cli.Context) error {
		return run(ctx)
	},
}

func run(ctx *cli.Context) error {
	registryPath := ctx.String(registryPathFlag.Name)
	apiPort := ctx.Int(apiPortFlag.Name)
	var cfg client.Config

	if path := ctx.String(configFlag.Name); path != "" {
		fileCfg, err := config.LoadClient(path)
		if err != nil {
			return err
		}
		registryPath = fileCfg.RegistryPath
		apiPort = fileCfg.APIPort
		if fileCfg.WriteTimeoutMillis > 0 {
			cfg.WriteTimeout = msToDuration(fileCfg.WriteTimeoutMillis)
		}
		if fileCfg.ReadTimeoutMillis > 0 {
			cfg.ReadTimeout = msToDuration(fileCfg.ReadTimeoutMillis)
		}
	}
	if registryPath == "" {
		return fmt.Errorf("client: --registry-path (or config registry_path) is required")
	}

	provider, err := registry.NewFileProvider(registryPath)
	if err != nil {
		return err
	}
	validators, err := provider.AllValidators()
	if err != nil {
		return fmt.Errorf("client: loading validator registry: %w", err)
	}

	endpoints := make([]client.Endpoint, len(validators))
	for i, v := range validators {
		endpoints[i] = client.Endpoint{Index: v.Index, PublicKey: v.PublicKey, RequestURL: v.RequestURL}
	}

	coordinator, err := client.Dial(endpoints, cfg)
	if err != nil {
		return err
	}
	defer coordinator.Close()

	api := client.NewAPI(coordinator)
	addr := fmt.Sprintf(":%d", apiPort)
	log.Info("client API listening", "addr", addr, "validators", coordinator.N())
	return api.ListenAndServe(addr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
