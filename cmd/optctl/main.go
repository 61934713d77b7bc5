package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/danmuck/optwire/internal/logging"
	"github.com/danmuck/optwire/internal/observability"
)

func main() {
	app := newApp(os.Stdin, os.Stdout)
	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("optctl failed")
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout io.Writer) *cli.App {
	return &cli.App{
		Name:   "optctl",
		Usage:  "decode and encode TLV option regions",
		Reader: stdin,
		Writer: stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML config file",
				EnvVars: []string{"OPTWIRE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set the logging level (trace, debug, info, warn, error)",
			},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			decodeCommand(),
			encodeCommand(),
			pcapCommand(),
			codesCommand(),
			serveCommand(),
			configCommand(),
		},
	}
}

func setupLogging(c *cli.Context) error {
	logging.ConfigureRuntime()
	if raw := c.String("log-level"); raw != "" {
		level, ok := logging.ParseLevel(raw)
		if !ok {
			return errInvalidLogLevel(raw)
		}
		zerolog.SetGlobalLevel(level)
	}
	observability.InitLogger("optctl")
	return nil
}
