// Package leximpact implements the operator command line: offline metadata
// queries and population dataset inspection.
package leximpact

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	entrypoint "github.com/leximpact/socio-fiscal-api/internal/platform/cmd"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/metadata"
)

// Output formats accepted by --format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{FormatText, FormatJSON, FormatYAML}

// Config holds flag defaults read from the environment. The variables are
// shared with the simulation service so one .env file drives both.
type Config struct {
	JSONDir       string `env:"COUNTRY_JSON_DIR"         envDefault:"./data/json"`
	PopulationCSV string `env:"LEXIMPACT_POPULATION_CSV" envDefault:"./data/DCT.csv"`
	CSGPeriod     string `env:"LEXIMPACT_CSG_PERIOD"     envDefault:"2021"`
}

// ParseConfig loads the dotenv file and environment into a Config.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RootOptions holds the persistent flags shared by every subcommand.
type RootOptions struct {
	JSONDir string
	Format  string
}

func (o *RootOptions) metadata() *metadata.Cache {
	return metadata.NewCache(o.JSONDir)
}

// NewRootCommand returns the leximpact command tree.
func NewRootCommand(version string, cfg Config) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "leximpact",
		Short:         "Inspect LexImpact metadata and population datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.JSONDir, "json-dir", cfg.JSONDir, "directory holding parameters.json and variables.json")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatText, "output format (text|json|yaml)")

	cmd.AddCommand(newParameterCommand(opts))
	cmd.AddCommand(newAncestorsCommand(opts))
	cmd.AddCommand(newVariableCommand(opts))
	cmd.AddCommand(newInputsCommand(opts))
	cmd.AddCommand(newVariableParametersCommand(opts))
	cmd.AddCommand(newPopulationCommand(opts, cfg))
	cmd.AddCommand(newSituationCommand(opts, cfg))
	cmd.AddCommand(newVersionCommand(version))

	return cmd
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}
