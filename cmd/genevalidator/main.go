package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/flopezo/genevalidator/pkg/config"
)

const version = "0.1.0"

var (
	settings = config.NewViper()
	logger   = log.New(os.Stderr)

	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "genevalidator",
	Short: "GeneValidator - identify problems with predicted genes",
	Long: `GeneValidator checks predicted genes against their BLAST hits.

Every query of a FASTA file is paired with its BLAST results (XML -outfmt 5
or tabular -outfmt 6/7) and run through a set of validations, such as reading
frame consistency and gene merge detection. Inputs and reports may live on
the local filesystem or in S3 (s3://bucket/key); zstd compressed inputs are
decoded transparently.

Settings come from flags, GENEVALIDATOR_* environment variables, or a
settings file given with --config.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := config.ReadFile(settings, configFile); err != nil {
				return err
			}
		}
		l, err := newLogger(settings.GetString("log.level"))
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, diagnose(err))
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "settings file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	settings.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger(level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
		Prefix:          "genevalidator",
	}), nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "genevalidator version %s\n", version)
	},
}
