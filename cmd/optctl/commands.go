package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/danmuck/optwire/internal/capture"
	"github.com/danmuck/optwire/internal/config"
	"github.com/danmuck/optwire/internal/protocol/dhcp"
	"github.com/danmuck/optwire/internal/protocol/frame"
	"github.com/danmuck/optwire/internal/protocol/options"
	"github.com/danmuck/optwire/internal/protocol/schema"
	"github.com/danmuck/optwire/internal/protocol/view"
	"github.com/danmuck/optwire/internal/report"
	"github.com/danmuck/optwire/internal/server"
)

var (
	ErrUnknownFamily = errors.New("unknown family")
	ErrNoInput       = errors.New("no input")
	ErrBootpFamily   = errors.New("bootp input requires the dhcpv4 family")
)

func errInvalidLogLevel(raw string) error {
	return fmt.Errorf("invalid log level %q", raw)
}

func familyFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "family",
		Aliases: []string{"f"},
		Usage:   "Option family (" + strings.Join(schema.FamilyIDs(), ", ") + ")",
		Value:   "dhcpv4",
	}
}

type decodeOutput struct {
	Family  string          `json:"family"`
	Records []report.Record `json:"records,omitempty"`
	Error   string          `json:"error,omitempty"`
	Fault   *report.Fault   `json:"fault,omitempty"`
}

type pcapOutput struct {
	Index     int             `json:"index"`
	Timestamp time.Time       `json:"timestamp"`
	SrcPort   uint16          `json:"src_port"`
	DstPort   uint16          `json:"dst_port"`
	Xid       string          `json:"xid,omitempty"`
	Records   []report.Record `json:"records,omitempty"`
	Error     string          `json:"error,omitempty"`
	Fault     *report.Fault   `json:"fault,omitempty"`
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a hex options region",
		ArgsUsage: "[hex...]",
		Flags: []cli.Flag{
			familyFlag(),
			&cli.StringFlag{Name: "file", Usage: "Read hex from a file instead of arguments or stdin"},
			&cli.BoolFlag{Name: "bootp", Usage: "Input is a full DHCPv4 message; decode the options after the magic cookie"},
		},
		Action: func(c *cli.Context) error {
			cfg, reg, err := loadRegistry(c)
			if err != nil {
				return err
			}
			fam, err := lookupFamily(reg, c.String("family"))
			if err != nil {
				return err
			}
			raw, err := readHexInput(c)
			if err != nil {
				return err
			}
			region := view.New(raw)
			if c.Bool("bootp") {
				if fam.ID != dhcp.Family.ID {
					return fmt.Errorf("%w: --bootp carries %s options, not %s", ErrBootpFamily, dhcp.Family.ID, fam.ID)
				}
				if region, err = frame.DHCPv4Options(raw); err != nil {
					return err
				}
			}

			dec := options.NewDecoder(reg)
			dec.Limits = cfg.Limits
			records, err := dec.Decode(fam, region)
			out := decodeOutput{Family: fam.ID}
			if err != nil {
				out.Error = err.Error()
				if f, ok := report.FaultOf(err); ok {
					out.Fault = &f
				}
				if werr := writeJSON(c.App.Writer, out); werr != nil {
					return werr
				}
				return err
			}
			out.Records = report.FromRecords(records)
			return writeJSON(c.App.Writer, out)
		},
	}
}

func encodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "encode",
		Usage: "Encode JSON records (the decode output format) to hex",
		Flags: []cli.Flag{
			familyFlag(),
			&cli.StringFlag{Name: "file", Usage: "Read JSON from a file instead of stdin"},
		},
		Action: func(c *cli.Context) error {
			_, reg, err := loadRegistry(c)
			if err != nil {
				return err
			}
			fam, err := lookupFamily(reg, c.String("family"))
			if err != nil {
				return err
			}
			data, err := readInput(c)
			if err != nil {
				return err
			}
			var in decodeOutput
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("parse records: %w", err)
			}
			records, err := report.ToRecords(fam, in.Records)
			if err != nil {
				return err
			}
			out, err := options.Encode(fam, records)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, hex.EncodeToString(out))
			return err
		},
	}
}

func pcapCommand() *cli.Command {
	return &cli.Command{
		Name:      "pcap",
		Usage:     "Decode DHCPv4 options from every DHCP packet in a pcap file",
		ArgsUsage: "<file.pcap>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("pcap file is required")
			}
			cfg, reg, err := loadRegistry(c)
			if err != nil {
				return err
			}
			f, err := os.Open(c.Args().First())
			if err != nil {
				return fmt.Errorf("open pcap: %w", err)
			}
			defer func() {
				_ = f.Close()
			}()

			dec := options.NewDecoder(reg)
			dec.Limits = cfg.Limits
			enc := json.NewEncoder(c.App.Writer)
			stats, err := capture.NewReader(dec, cfg.PcapPorts).Read(c.Context, f, func(m capture.Message) error {
				out := pcapOutput{
					Index:     m.Index,
					Timestamp: m.Timestamp,
					SrcPort:   m.SrcPort,
					DstPort:   m.DstPort,
					Records:   report.FromRecords(m.Records),
				}
				if m.Header.Xid != 0 {
					out.Xid = fmt.Sprintf("0x%08x", m.Header.Xid)
				}
				if m.Err != nil {
					out.Error = m.Err.Error()
					if fault, ok := report.FaultOf(m.Err); ok {
						out.Fault = &fault
					}
				}
				return enc.Encode(out)
			})
			if err != nil {
				return err
			}
			log.Info().
				Int("packets", stats.Packets).
				Int("matched", stats.Matched).
				Int("decoded", stats.Decoded).
				Int("faults", stats.Faults).
				Msg("pcap done")
			return nil
		},
	}
}

func codesCommand() *cli.Command {
	return &cli.Command{
		Name:  "codes",
		Usage: "List families, or the registered codes of one family",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "family", Aliases: []string{"f"}, Usage: "Family to list codes for"},
		},
		Action: func(c *cli.Context) error {
			_, reg, err := loadRegistry(c)
			if err != nil {
				return err
			}
			if c.String("family") == "" {
				return writeJSON(c.App.Writer, report.Families(reg))
			}
			fam, err := lookupFamily(reg, c.String("family"))
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, report.Codes(reg, fam))
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the decode/encode HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "Listen address (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			cfg, reg, err := loadRegistry(c)
			if err != nil {
				return err
			}
			if listen := c.String("listen"); listen != "" {
				cfg.Listen = listen
			}
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.New(cfg.Name, cfg.Listen, reg, cfg.Limits).Serve(ctx)
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Write or validate config files",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a config template",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "optwire.toml"},
					&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
				},
				Action: func(c *cli.Context) error {
					if err := config.WriteTemplate(c.String("output"), c.Bool("force")); err != nil {
						return err
					}
					log.Info().Str("path", c.String("output")).Msg("config template written")
					return nil
				},
			},
			{
				Name:      "validate",
				Usage:     "Load a config file and build its registry",
				ArgsUsage: "<config.toml>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("config path is required")
					}
					cfg, err := config.Load(c.Args().First())
					if err != nil {
						return err
					}
					if _, err := cfg.Registry(); err != nil {
						return err
					}
					_, err = fmt.Fprintf(c.App.Writer, "ok: %d extra option(s)\n", len(cfg.Options))
					return err
				},
			},
		},
	}
}

func loadRegistry(c *cli.Context) (config.Config, *options.Registry, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, nil, err
		}
		cfg = loaded
	}
	reg, err := cfg.Registry()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, reg, nil
}

func lookupFamily(reg *options.Registry, id string) (options.Family, error) {
	fam, ok := reg.Family(strings.ToLower(strings.TrimSpace(id)))
	if !ok {
		return options.Family{}, fmt.Errorf("%w: %q", ErrUnknownFamily, id)
	}
	return fam, nil
}

func readInput(c *cli.Context) ([]byte, error) {
	if path := c.String("file"); path != "" {
		return os.ReadFile(path)
	}
	if c.App.Reader == nil {
		return nil, ErrNoInput
	}
	return io.ReadAll(c.App.Reader)
}

func readHexInput(c *cli.Context) ([]byte, error) {
	var text string
	if c.NArg() > 0 {
		text = strings.Join(c.Args().Slice(), "")
	} else {
		data, err := readInput(c)
		if err != nil {
			return nil, err
		}
		text = string(data)
	}
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	if compact == "" {
		return nil, ErrNoInput
	}
	return hex.DecodeString(strings.TrimPrefix(compact, "0x"))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
