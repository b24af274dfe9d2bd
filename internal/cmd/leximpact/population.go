package leximpact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/casetype"
)

func newPopulationCommand(opts *RootOptions, cfg Config) *cobra.Command {
	var csvPath string
	cmd := &cobra.Command{
		Use:   "population",
		Short: "Summarize a population dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := loadPopulation(csvPath)
			if err != nil {
				return err
			}
			totals := casetype.Summarize(cases)
			if opts.Format == FormatText {
				return writeTotals(cmd.OutOrStdout(), totals)
			}
			return write(cmd.OutOrStdout(), opts.Format, totals)
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", cfg.PopulationCSV, "population dataset")
	return cmd
}

func newSituationCommand(opts *RootOptions, cfg Config) *cobra.Command {
	var (
		csvPath string
		period  string
	)
	cmd := &cobra.Command{
		Use:   "situation",
		Short: "Print the engine situation built from a population dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(period) == "" {
				return errors.New("period is required")
			}
			cases, err := loadPopulation(csvPath)
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), opts.Format, casetype.TabularSituation(cases, period))
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", cfg.PopulationCSV, "population dataset")
	cmd.Flags().StringVar(&period, "period", cfg.CSGPeriod, "simulation period")
	return cmd
}

func loadPopulation(path string) ([]casetype.CaseType, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open population dataset: %w", err)
	}
	defer file.Close()

	cases, err := casetype.LoadPopulationCSV(file)
	if err != nil {
		return nil, fmt.Errorf("load population dataset %s: %w", path, err)
	}
	return cases, nil
}

func writeTotals(w io.Writer, totals casetype.Totals) error {
	p := message.NewPrinter(language.French)
	lines := []struct {
		label string
		value string
	}{
		{"foyers", p.Sprintf("%d", totals.Households)},
		{"poids", p.Sprintf("%.2f", totals.Weight)},
		{"revenu_activite", p.Sprintf("%.2f", totals.RevenuActivite)},
		{"revenu_capital", p.Sprintf("%.2f", totals.RevenuCapital)},
		{"revenu_remplacement", p.Sprintf("%.2f", totals.RevenuRemplacement)},
		{"revenu_retraite", p.Sprintf("%.2f", totals.RevenuRetraite)},
	}
	for _, line := range lines {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", line.label, line.value); err != nil {
			return err
		}
	}
	return nil
}
