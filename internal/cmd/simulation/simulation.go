// Package simulation parses simulation command flags and composes the server
// entrypoint.
package simulation

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/leximpact/socio-fiscal-api/internal/platform/cmd"
	server "github.com/leximpact/socio-fiscal-api/internal/services/simulation/app"
)

// Config holds simulation command configuration.
type Config struct {
	HTTPAddr       string        `env:"LEXIMPACT_HTTP_ADDR"        envDefault:"127.0.0.1:5000"`
	CountryPackage string        `env:"COUNTRY_PACKAGE"            envDefault:"openfisca_france"`
	CountryJSONDir string        `env:"COUNTRY_JSON_DIR"           envDefault:"./data/json"`
	EngineURL      string        `env:"LEXIMPACT_ENGINE_URL"       envDefault:"http://127.0.0.1:5001"`
	EngineTimeout  time.Duration `env:"LEXIMPACT_ENGINE_TIMEOUT"   envDefault:"60s"`
	PopulationCSV  string        `env:"LEXIMPACT_POPULATION_CSV"   envDefault:"./data/DCT.csv"`
	CSGPeriod      string        `env:"LEXIMPACT_CSG_PERIOD"       envDefault:"2021"`
	RunsDBPath     string        `env:"LEXIMPACT_RUNS_DB"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "simulation HTTP listen address")
	fs.StringVar(&cfg.CountryPackage, "country-package", cfg.CountryPackage, "country package evaluated by the engine")
	fs.StringVar(&cfg.CountryJSONDir, "country-json-dir", cfg.CountryJSONDir, "directory holding parameters.json and variables.json")
	fs.StringVar(&cfg.EngineURL, "engine-url", cfg.EngineURL, "rule engine base URL")
	fs.DurationVar(&cfg.EngineTimeout, "engine-timeout", cfg.EngineTimeout, "timeout of one engine calculation")
	fs.StringVar(&cfg.PopulationCSV, "population-csv", cfg.PopulationCSV, "population dataset used by CSG aggregates")
	fs.StringVar(&cfg.CSGPeriod, "csg-period", cfg.CSGPeriod, "period of CSG calculations")
	fs.StringVar(&cfg.RunsDBPath, "runs-db", cfg.RunsDBPath, "SQLite path of the run store (empty disables it)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the simulation app and serves it until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSimulation, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			HTTPAddr:       cfg.HTTPAddr,
			CountryPackage: cfg.CountryPackage,
			CountryJSONDir: cfg.CountryJSONDir,
			EngineURL:      cfg.EngineURL,
			EngineTimeout:  cfg.EngineTimeout,
			PopulationCSV:  cfg.PopulationCSV,
			CSGPeriod:      cfg.CSGPeriod,
			RunsDBPath:     cfg.RunsDBPath,
		})
	})
}
