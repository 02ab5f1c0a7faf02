// Package config holds run settings decoded by viper from defaults, an
// optional settings file, GENEVALIDATOR_ environment variables, and flags
// (see /cmd/genevalidator).
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/flopezo/genevalidator/pkg/pipeline"
	"github.com/flopezo/genevalidator/pkg/seq"
	"github.com/flopezo/genevalidator/pkg/validate"
)

// EnvPrefix prefixes every environment variable, e.g. GENEVALIDATOR_MERGE_MIN_HITS
const EnvPrefix = "GENEVALIDATOR"

// TabularConfig describes tabular BLAST input
type TabularConfig struct {
	// -outfmt 6 column specifiers, overridden by a "# Fields:" comment
	Columns []string `mapstructure:"columns"`
}

// FrameConfig tunes the reading frame rule
type FrameConfig struct {
	MinHits int `mapstructure:"min_hits"`
}

// MergeConfig tunes the gene merge rule
type MergeConfig struct {
	MinHits int `mapstructure:"min_hits"`

	// the merge distance in amino acids; 0 uses 10% of the predicted length
	Threshold float64 `mapstructure:"threshold"`

	// the share of hits a cluster needs to be kept
	MinClusterFraction float64 `mapstructure:"min_cluster_fraction"`
}

// ReportConfig says where reports go
type ReportConfig struct {
	// a file path, an s3:// URI, or "-" for stdout
	Out string `mapstructure:"out"`
}

// LogConfig sets the log level
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Config is the root-level settings struct
type Config struct {
	// path or s3:// URI of the predicted sequences
	Fasta string `mapstructure:"fasta"`

	// path or s3:// URI of the BLAST output for Fasta
	Results string `mapstructure:"results"`

	// nucleotide or protein; empty detects it from Fasta
	Type string `mapstructure:"type"`

	// 1-based query to resume at
	Start int `mapstructure:"start"`

	// 0 detects the number of performance cores
	Workers int `mapstructure:"workers"`

	Rules []string `mapstructure:"rules"`

	Tabular TabularConfig `mapstructure:"tabular"`
	Frame   FrameConfig   `mapstructure:"frame"`
	Merge   MergeConfig   `mapstructure:"merge"`
	Report  ReportConfig  `mapstructure:"report"`
	Log     LogConfig     `mapstructure:"log"`
}

// SetDefaults registers every key with its default value
func SetDefaults(v *viper.Viper) {
	opts := validate.DefaultOptions()

	v.SetDefault("fasta", "")
	v.SetDefault("results", "")
	v.SetDefault("type", "")
	v.SetDefault("start", 1)
	v.SetDefault("workers", 0)
	v.SetDefault("rules", []string{validate.FrameRuleName, validate.MergeRuleName})
	v.SetDefault("tabular.columns", []string{})
	v.SetDefault("frame.min_hits", opts.FrameMinHits)
	v.SetDefault("merge.min_hits", opts.MergeMinHits)
	v.SetDefault("merge.threshold", opts.MergeThreshold)
	v.SetDefault("merge.min_cluster_fraction", opts.MergeMinClusterPct)
	v.SetDefault("report.out", "-")
	v.SetDefault("log.level", "info")
}

// NewViper returns a viper instance with defaults and environment lookup
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges a YAML (or any viper supported) settings file into v
func ReadFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read settings %s: %w", path, err)
	}
	return nil
}

// New decodes and checks the settings in v
func New(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode settings: %w", err)
	}
	c.Rules = splitList(c.Rules)
	c.Tabular.Columns = splitList(c.Tabular.Columns)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// splitList accepts lists given as one space or comma separated string
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		out = append(out, strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})...)
	}
	return out
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.Start < 1 {
		return &pipeline.InvalidStartIndexError{Index: c.Start}
	}
	if c.Workers < 0 {
		return fmt.Errorf("invalid worker count %d", c.Workers)
	}
	if _, err := c.SequenceType(); err != nil {
		return err
	}
	if len(c.Rules) == 0 {
		return errors.New("no validation rules selected")
	}
	if c.Merge.MinClusterFraction < 0 || c.Merge.MinClusterFraction > 1 {
		return fmt.Errorf("merge.min_cluster_fraction %g is outside [0, 1]", c.Merge.MinClusterFraction)
	}
	if c.Merge.Threshold < 0 {
		return fmt.Errorf("merge.threshold %g is negative", c.Merge.Threshold)
	}
	if _, err := validate.Select(c.Rules, c.RuleOptions()); err != nil {
		return err
	}
	return nil
}

// SequenceType parses Type; an empty Type is seq.Unknown
func (c *Config) SequenceType() (seq.Type, error) {
	if strings.TrimSpace(c.Type) == "" {
		return seq.Unknown, nil
	}
	return seq.ParseType(c.Type)
}

// RuleOptions returns the rule settings
func (c *Config) RuleOptions() validate.Options {
	return validate.Options{
		FrameMinHits:       c.Frame.MinHits,
		MergeMinHits:       c.Merge.MinHits,
		MergeThreshold:     c.Merge.Threshold,
		MergeMinClusterPct: c.Merge.MinClusterFraction,
	}
}

// Engine builds the validation engine for the selected rules
func (c *Config) Engine() (*validate.Engine, error) {
	rules, err := validate.Select(c.Rules, c.RuleOptions())
	if err != nil {
		return nil, err
	}
	return validate.NewEngine(rules...), nil
}
