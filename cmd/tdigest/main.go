// Command tdigest builds, merges and inspects digest snapshots.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs/v2"
	"go.uber.org/zap"

	"github.com/histdb/tdigest"
	"github.com/histdb/tdigest/registry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	configPath  string
	compression float64
	quantiles   []float64
	codec       string
	frame       string
	logLevel    string

	cfg Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}
	def := defaultConfig()

	root := &cobra.Command{
		Use:               "tdigest",
		Short:             "Estimate quantiles with merging t-digests",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { _ = a.log.Sync() },
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "yaml config file")
	flags.Float64Var(&a.compression, "compression", def.Compression, "digest compression")
	flags.Float64SliceVar(&a.quantiles, "quantiles", def.Quantiles, "quantiles to report")
	flags.StringVar(&a.codec, "codec", def.Codec, "snapshot codec: binary or msgpack")
	flags.StringVar(&a.frame, "frame", def.Frame, "snapshot compression: none, lz4 or zstd")
	flags.StringVar(&a.logLevel, "log-level", def.LogLevel, "log level")

	root.AddCommand(
		a.quantilesCmd(),
		a.mergeCmd(),
		a.inspectCmd(),
	)
	return root
}

// setup loads the config file and applies the flags that were set over it.
func (a *app) setup(cmd *cobra.Command, args []string) (err error) {
	a.cfg = defaultConfig()
	if a.configPath != "" {
		a.cfg, err = loadConfig(a.configPath)
		if err != nil {
			return err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("compression") {
		a.cfg.Compression = a.compression
	}
	if flags.Changed("quantiles") {
		a.cfg.Quantiles = a.quantiles
	}
	if flags.Changed("codec") {
		a.cfg.Codec = a.codec
	}
	if flags.Changed("frame") {
		a.cfg.Frame = a.frame
	}
	if flags.Changed("log-level") {
		a.cfg.LogLevel = a.logLevel
	}

	if err := a.cfg.validate(); err != nil {
		return err
	}

	a.log, err = newLogger(a.cfg.LogLevel)
	return err
}

func (a *app) printQuantiles(w io.Writer, d *tdigest.T) error {
	for _, q := range a.cfg.Quantiles {
		v, err := d.Quantile(q)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%g %g\n", q, v); err != nil {
			return errs.Wrap(err)
		}
	}
	return nil
}

func (a *app) writeSnapshot(path string, s tdigest.Snapshot) error {
	data, err := encodeSnapshot(a.cfg, s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(err)
	}

	a.log.Info("wrote snapshot",
		zap.String("path", path),
		zap.String("codec", a.cfg.Codec),
		zap.String("frame", a.cfg.Frame),
		zap.Int("bytes", len(data)),
		zap.Int("centroids", len(s.Centroids)))
	return nil
}

func readSnapshot(path string) (tdigest.Snapshot, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return tdigest.Snapshot{}, errs.Wrap(err)
	}
	s, err := decodeSnapshot(buf)
	if err != nil {
		return s, errs.Errorf("%s: %v", path, err)
	}
	return s, nil
}

// readValues adds every "value" or "value weight" line of r to d. Blank lines
// and lines starting with # are skipped.
func readValues(d *tdigest.T, name string, r io.Reader) error {
	s := bufio.NewScanner(r)
	for line := 1; s.Scan(); line++ {
		text := strings.TrimSpace(s.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) > 2 {
			return errs.Errorf("%s:%d: expected value and optional weight", name, line)
		}

		value, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return errs.Errorf("%s:%d: %v", name, line, err)
		}
		weight := 1.0
		if len(fields) == 2 {
			weight, err = strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return errs.Errorf("%s:%d: %v", name, line, err)
			}
		}

		if err := d.Add(value, weight); err != nil {
			return errs.Errorf("%s:%d: %v", name, line, err)
		}
	}
	return errs.Wrap(s.Err())
}

func (a *app) quantilesCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "quantiles [files...]",
		Short: "Read values and print quantile estimates",
		Long: "Reads lines holding a value and an optional weight from the files, " +
			"or from stdin when none are given, and prints the configured quantiles.",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := tdigest.New(a.cfg.Compression)

			if len(args) == 0 {
				if err := readValues(d, "stdin", cmd.InOrStdin()); err != nil {
					return err
				}
			}
			for _, path := range args {
				fh, err := os.Open(path)
				if err != nil {
					return errs.Wrap(err)
				}
				if err := errs.Combine(readValues(d, path, fh), fh.Close()); err != nil {
					return err
				}
			}

			a.log.Debug("read values",
				zap.Int("files", len(args)),
				zap.Float64("count", d.Count()))

			if err := a.printQuantiles(cmd.OutOrStdout(), d); err != nil {
				return err
			}
			if out != "" {
				return a.writeSnapshot(out, d.Snapshot())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "also write the snapshot to this file")
	return cmd
}

func (a *app) mergeCmd() *cobra.Command {
	var out string
	var seed uint64

	cmd := &cobra.Command{
		Use:   "merge --out path inputs...",
		Short: "Merge snapshot files into one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.New(registry.Config{
				Compression: a.cfg.Compression,
				Seed:        seed,
				Logger:      a.log,
			})

			const name = "merged"
			for _, path := range args {
				s, err := readSnapshot(path)
				if err != nil {
					return err
				}
				if err := reg.Merge(name, s); err != nil {
					return errs.Errorf("%s: %v", path, err)
				}
				a.log.Debug("merged snapshot",
					zap.String("path", path),
					zap.Float64("count", s.Count()))
			}

			s, _ := reg.Snapshot(name)
			return a.writeSnapshot(out, s)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "file to write the merged snapshot to")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for the merge order")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect path",
		Short: "Describe a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			d := tdigest.FromSnapshot(s)

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "compression %g\n", s.Compression)
			fmt.Fprintf(w, "min %g\n", s.Min)
			fmt.Fprintf(w, "max %g\n", s.Max)
			fmt.Fprintf(w, "count %g\n", d.Count())
			fmt.Fprintf(w, "centroids %d\n", len(s.Centroids))
			return a.printQuantiles(w, d)
		},
	}
}
