// Package reform builds the parameter overrides applied to one calculation.
package reform

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/engine"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/metadata"
)

// Reform maps dotted parameter names to their override.
type Reform map[string]engine.ParameterChange

// Period bounds used by population reforms: year:1900:200.
const (
	PeriodStart = "1900-01-01"
	PeriodStop  = "2099-12-31"
)

// CSG rate parameters overridden by CSG reforms.
const (
	CSGActiviteImposableTaux  = "prelevements_sociaux.contributions.csg.activite.imposable.taux"
	CSGActiviteDeductibleTaux = "prelevements_sociaux.contributions.csg.activite.deductible.taux"
)

// Normalize decodes a client reform object, dropping parameters whose change
// is null. A null or empty reform returns nil.
func Normalize(data json.RawMessage) (Reform, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode reform: %w", err)
	}
	reform := make(Reform, len(raw))
	for name, value := range raw {
		if string(value) == "null" {
			continue
		}
		var change engine.ParameterChange
		if err := json.Unmarshal(value, &change); err != nil {
			return nil, fmt.Errorf("decode reform %s: %w", name, err)
		}
		reform[name] = change
	}
	if len(reform) == 0 {
		return nil, nil
	}
	return reform, nil
}

// Validate reports, by parameter name, every change that targets a parameter
// missing from parameters.
func Validate(reform Reform, parameters metadata.Parameters) map[string]string {
	var problems map[string]string
	for _, name := range slices.Sorted(maps.Keys(reform)) {
		missing := parameters.MissingID(name)
		if missing == "" {
			continue
		}
		if problems == nil {
			problems = make(map[string]string)
		}
		problems[name] = "Parameter doesn't exist. Missing " + missing
	}
	return problems
}

// Names returns the reformed parameter names in order.
func (r Reform) Names() []string {
	return slices.Sorted(maps.Keys(r))
}

// CSGPayload sets the CSG rates on earned income.
type CSGPayload struct {
	ActiviteImposableTaux  float64 `json:"csg_activite_imposable_taux"`
	ActiviteDeductibleTaux float64 `json:"csg_activite_deductible_taux"`
}

// UnmarshalJSON requires both rates.
func (p *CSGPayload) UnmarshalJSON(data []byte) error {
	var raw struct {
		ActiviteImposableTaux  *float64 `json:"csg_activite_imposable_taux"`
		ActiviteDeductibleTaux *float64 `json:"csg_activite_deductible_taux"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.ActiviteImposableTaux == nil {
		return errors.New("field csg_activite_imposable_taux is required")
	}
	if raw.ActiviteDeductibleTaux == nil {
		return errors.New("field csg_activite_deductible_taux is required")
	}
	*p = CSGPayload{
		ActiviteImposableTaux:  *raw.ActiviteImposableTaux,
		ActiviteDeductibleTaux: *raw.ActiviteDeductibleTaux,
	}
	return nil
}

// CSG returns the reform setting both CSG rates from 1900 to 2099.
func CSG(payload CSGPayload) Reform {
	return Reform{
		CSGActiviteImposableTaux:  change(payload.ActiviteImposableTaux),
		CSGActiviteDeductibleTaux: change(payload.ActiviteDeductibleTaux),
	}
}

func change(value float64) engine.ParameterChange {
	// Marshal of a finite float64 cannot fail.
	data, _ := json.Marshal(value)
	return engine.ParameterChange{Start: PeriodStart, Stop: PeriodStop, Value: data}
}
