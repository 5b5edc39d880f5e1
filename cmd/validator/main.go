// Command validator runs a single dato validator node: it signs and serves
// records over a request/reply socket and fans out writes to subscribers.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/chainbound/dato/blssig"
	"github.com/chainbound/dato/internal/config"
	"github.com/chainbound/dato/internal/gethlog"
	"github.com/chainbound/dato/store"
	"github.com/chainbound/dato/validator"
)

var log = gethlog.New("module", "cmd/validator")

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to a validator TOML config file; overrides other flags when set",
	}
	portFlag = &cli.IntFlag{
		Name:  "port",
		Usage: "request/reply bind port",
		Value: 9000,
	}
	secretKeyFlag = &cli.StringFlag{
		Name:  "secret-key",
		Usage: "hex-encoded BLS12-381 secret key; a fresh one is generated if omitted",
	}
	backendFlag = &cli.StringFlag{
		Name:  "backend",
		Usage: "store backend; only in-memory is implemented, any other value (including filesystem) is rejected",
		Value: "in-memory",
	}
	storeCapacityFlag = &cli.IntFlag{
		Name:  "store-capacity",
		Usage: "per-namespace record capacity",
		Value: store.DefaultCapacity,
	}
)

var app = &cli.App{
	Name:  "validator",
	Usage: "run a dato validator node",
	Flags: []cli.Flag{configFlag, portFlag, secretKeyFlag, backendFlag, storeCapacityFlag},
	Action: func(ctx *cli.Context) error {
		return run(ctx)
	},
}

func run(ctx *cli.Context) error {
	var cfg validator.Config
	var secretKeyHex string
	backend := ctx.String(backendFlag.Name)

	if path := ctx.String(configFlag.Name); path != "" {
		fileCfg, err := config.LoadValidator(path)
		if err != nil {
			return err
		}
		cfg.RequestAddr = fileCfg.RequestAddr
		cfg.PublisherAddr = fileCfg.PublisherAddr
		cfg.StoreCapacity = fileCfg.StoreCapacity
		secretKeyHex = fileCfg.SecretKeyHex
	} else {
		cfg.RequestAddr = fmt.Sprintf(":%d", ctx.Int(portFlag.Name))
		cfg.StoreCapacity = ctx.Int(storeCapacityFlag.Name)
		secretKeyHex = ctx.String(secretKeyFlag.Name)
	}

	if backend != "in-memory" {
		return fmt.Errorf("validator: unsupported backend %q (only in-memory is implemented)", backend)
	}

	secretKey, err := loadOrGenerateSecretKey(secretKeyHex)
	if err != nil {
		return err
	}

	v, err := validator.New(secretKey, cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	log.Info("validator started", "publicKey", hexEncode(secretKey.PublicKey().Bytes()))
	select {}
}

func loadOrGenerateSecretKey(hexKey string) (*blssig.SecretKey, error) {
	if hexKey == "" {
		sk, err := blssig.GenerateSecretKey()
		if err != nil {
			return nil, fmt.Errorf("validator: generating secret key: %w", err)
		}
		return sk, nil
	}
	raw, err := hexDecode(hexKey)
	if err != nil {
		return nil, fmt.Errorf("validator: invalid --secret-key: %w", err)
	}
	return blssig.SecretKeyFromBytes(raw)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
