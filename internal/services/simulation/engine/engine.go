// Package engine is the boundary to the external rule engine that evaluates
// socio-fiscal variables on a situation.
package engine

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/leximpact/socio-fiscal-api/internal/platform/errors"
	"github.com/tidwall/gjson"
)

// Engine evaluates variables on a situation.
type Engine interface {
	Calculate(ctx context.Context, req Request) (Result, error)
}

// ParameterChange overrides one parameter over [Start, Stop].
type ParameterChange struct {
	Start string          `json:"start,omitempty"`
	Stop  string          `json:"stop,omitempty"`
	Value json.RawMessage `json:"value"`
}

// Request is one calculation. Values are summed over Period.
type Request struct {
	CountryPackage string                     `json:"country_package"`
	Situation      json.RawMessage            `json:"situation"`
	Period         string                     `json:"period"`
	Variables      []string                   `json:"variables"`
	Reform         map[string]ParameterChange `json:"reform,omitempty"`
}

// Result holds the calculated values keyed by variable name.
type Result struct {
	Variables map[string]VariableResult `json:"variables"`
}

// VariableResult is the vector of one variable, one value per entity of
// Entity (a plural such as "individus").
type VariableResult struct {
	Entity string `json:"entity"`
	Values Vector `json:"values"`
}

// Variable returns the values of name or a mismatch error when the engine
// did not return it.
func (r Result) Variable(name string) (VariableResult, error) {
	values, ok := r.Variables[name]
	if !ok {
		return VariableResult{}, apperrors.WithMetadata(apperrors.CodeEngineMismatch,
			fmt.Sprintf("engine result has no variable %s", name),
			map[string]string{"Name": name})
	}
	return values, nil
}

// Vector decodes numeric and boolean engine values as float64.
type Vector []float64

// UnmarshalJSON accepts numbers and booleans.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	values := make(Vector, len(raw))
	for i, item := range raw {
		switch value := gjson.ParseBytes(item); value.Type {
		case gjson.Number:
			values[i] = value.Float()
		case gjson.True:
			values[i] = 1
		case gjson.False:
			values[i] = 0
		default:
			return fmt.Errorf("value %d is not numeric: %s", i, item)
		}
	}
	*v = values
	return nil
}

// Aggregate sums values by consecutive sections of entityCount items when the
// situation holds more than one entity of the variable's kind.
func Aggregate(values []float64, entityCount int) ([]float64, error) {
	if entityCount <= 1 || len(values) == 0 {
		return values, nil
	}
	sections := len(values) / entityCount
	if sections == 0 || len(values)%sections != 0 {
		return nil, fmt.Errorf("cannot split %d values into %d sections", len(values), sections)
	}
	size := len(values) / sections
	sums := make([]float64, sections)
	for i := range sections {
		for _, value := range values[i*size : (i+1)*size] {
			sums[i] += value
		}
	}
	return sums, nil
}

// EntityCounts returns the number of entities declared under each plural of
// situation.
func EntityCounts(situation json.RawMessage) map[string]int {
	counts := make(map[string]int)
	gjson.ParseBytes(situation).ForEach(func(plural, entities gjson.Result) bool {
		if !entities.IsObject() {
			return true
		}
		count := 0
		entities.ForEach(func(_, _ gjson.Result) bool {
			count++
			return true
		})
		counts[plural.String()] = count
		return true
	})
	return counts
}
