// Package casetype turns flat household income records into the entity graph
// consumed by the simulation engine.
package casetype

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CaseType is the income profile of one household for one year.
type CaseType struct {
	RevenuActivite     float64  `json:"revenu_activite" yaml:"revenu_activite"`
	RevenuCapital      float64  `json:"revenu_capital" yaml:"revenu_capital"`
	RevenuRemplacement float64  `json:"revenu_remplacement" yaml:"revenu_remplacement"`
	RevenuRetraite     float64  `json:"revenu_retraite" yaml:"revenu_retraite"`
	WPRM               *float64 `json:"wprm,omitempty" yaml:"wprm,omitempty"`
}

// Weight returns the survey weight, 1 when none is set.
func (c CaseType) Weight() float64 {
	if c.WPRM == nil {
		return 1
	}
	return *c.WPRM
}

// UnmarshalJSON requires every income field; wprm stays optional.
func (c *CaseType) UnmarshalJSON(data []byte) error {
	var raw struct {
		RevenuActivite     *float64 `json:"revenu_activite"`
		RevenuCapital      *float64 `json:"revenu_capital"`
		RevenuRemplacement *float64 `json:"revenu_remplacement"`
		RevenuRetraite     *float64 `json:"revenu_retraite"`
		WPRM               *float64 `json:"wprm"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	missing := func(field string) error {
		return fmt.Errorf("field %s is required", field)
	}
	switch {
	case raw.RevenuActivite == nil:
		return missing("revenu_activite")
	case raw.RevenuCapital == nil:
		return missing("revenu_capital")
	case raw.RevenuRemplacement == nil:
		return missing("revenu_remplacement")
	case raw.RevenuRetraite == nil:
		return missing("revenu_retraite")
	}
	*c = CaseType{
		RevenuActivite:     *raw.RevenuActivite,
		RevenuCapital:      *raw.RevenuCapital,
		RevenuRemplacement: *raw.RevenuRemplacement,
		RevenuRetraite:     *raw.RevenuRetraite,
		WPRM:               raw.WPRM,
	}
	return nil
}

// WeightedSum returns the sum of values weighted by the matching case type.
func WeightedSum(values []float64, cases []CaseType) (float64, error) {
	if len(values) != len(cases) {
		return 0, fmt.Errorf("got %d values for %d case types", len(values), len(cases))
	}
	total := 0.0
	for i, value := range values {
		total += value * cases[i].Weight()
	}
	return total, nil
}

// Totals summarizes a population.
type Totals struct {
	Households         int     `json:"households" yaml:"households"`
	Weight             float64 `json:"weight" yaml:"weight"`
	RevenuActivite     float64 `json:"revenu_activite" yaml:"revenu_activite"`
	RevenuCapital      float64 `json:"revenu_capital" yaml:"revenu_capital"`
	RevenuRemplacement float64 `json:"revenu_remplacement" yaml:"revenu_remplacement"`
	RevenuRetraite     float64 `json:"revenu_retraite" yaml:"revenu_retraite"`
}

// Summarize returns weighted income totals for cases.
func Summarize(cases []CaseType) Totals {
	totals := Totals{Households: len(cases)}
	for _, c := range cases {
		w := c.Weight()
		totals.Weight += w
		totals.RevenuActivite += c.RevenuActivite * w
		totals.RevenuCapital += c.RevenuCapital * w
		totals.RevenuRemplacement += c.RevenuRemplacement * w
		totals.RevenuRetraite += c.RevenuRetraite * w
	}
	return totals
}

// ErrNoCaseTypes is returned when a batch is empty.
var ErrNoCaseTypes = errors.New("at least one case type is required")
