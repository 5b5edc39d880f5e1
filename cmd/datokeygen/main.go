// Command datokeygen generates a batch of BLS12-381 validator keypairs and
// writes two files: a public registry clients dial against, and a private
// keyfile operators use to configure each validator.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/chainbound/dato/blssig"
)

var (
	countFlag = &cli.IntFlag{
		Name:  "count",
		Usage: "number of validator keypairs to generate",
		Value: 4,
	}
	hostPrefixFlag = &cli.StringFlag{
		Name:  "host-prefix",
		Usage: "hostname prefix used to synthesize each validator's request URL",
		Value: "dato-validator",
	}
	basePortFlag = &cli.IntFlag{
		Name:  "base-port",
		Usage: "request port assigned to validator 0; each later validator gets base-port+2*index",
		Value: 9000,
	}
	registryOutFlag = &cli.StringFlag{
		Name:  "registry-out",
		Usage: "path to write the public registry file",
		Value: "registry.txt",
	}
	keysOutFlag = &cli.StringFlag{
		Name:  "keys-out",
		Usage: "path to write the private keyfile",
		Value: "keys.txt",
	}
)

var app = &cli.App{
	Name:  "datokeygen",
	Usage: "generate dato validator keypairs",
	Flags: []cli.Flag{countFlag, hostPrefixFlag, basePortFlag, registryOutFlag, keysOutFlag},
	Action: func(ctx *cli.Context) error {
		return run(ctx)
	},
}

func run(ctx *cli.Context) error {
	count := ctx.Int(countFlag.Name)
	hostPrefix := ctx.String(hostPrefixFlag.Name)
	basePort := ctx.Int(basePortFlag.Name)

	registryFile, err := os.Create(ctx.String(registryOutFlag.Name))
	if err != nil {
		return fmt.Errorf("datokeygen: creating registry file: %w", err)
	}
	defer registryFile.Close()

	keysFile, err := os.Create(ctx.String(keysOutFlag.Name))
	if err != nil {
		return fmt.Errorf("datokeygen: creating keys file: %w", err)
	}
	defer keysFile.Close()

	for i := 0; i < count; i++ {
		sk, err := blssig.GenerateSecretKey()
		if err != nil {
			return fmt.Errorf("datokeygen: generating key %d: %w", i, err)
		}
		pubkeyHex := hexEncode(sk.PublicKey().Bytes())
		secretHex := hexEncode(sk.Bytes())
		requestURL := fmt.Sprintf("ws://%s-%d:%d/", hostPrefix, i, basePort+2*i)

		if _, err := fmt.Fprintf(registryFile, "%d,%s,%s\n", i, pubkeyHex, requestURL); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(keysFile, "%d,%s,%s\n", i, secretHex, requestURL); err != nil {
			return err
		}
	}

	fmt.Printf("generated %d validator keypairs: %s (public), %s (private)\n",
		count, ctx.String(registryOutFlag.Name), ctx.String(keysOutFlag.Name))
	return nil
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
