package metadata

import (
	"encoding/json"
	"errors"
	"iter"
	"slices"

	"github.com/tidwall/gjson"
)

// Variables is the variable catalog, an object keyed by variable name.
type Variables struct {
	root gjson.Result
}

// Variable is one catalog entry.
type Variable struct {
	name  string
	entry gjson.Result
}

// ParseVariables validates data as a JSON object and wraps it.
func ParseVariables(data []byte) (Variables, error) {
	if !gjson.ValidBytes(data) {
		return Variables{}, errors.New("invalid JSON document")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Variables{}, errors.New("variable catalog must be a JSON object")
	}
	return Variables{root: root}, nil
}

// Raw returns the whole catalog.
func (v Variables) Raw() json.RawMessage {
	return json.RawMessage(v.root.Raw)
}

// Len returns the number of variables.
func (v Variables) Len() int {
	count := 0
	v.root.ForEach(func(_, _ gjson.Result) bool {
		count++
		return true
	})
	return count
}

// Variable returns the entry registered under name.
func (v Variables) Variable(name string) (Variable, bool) {
	if name == "" {
		return Variable{}, false
	}
	entry := v.root.Get(gjson.Escape(name))
	if !entry.Exists() || entry.Type == gjson.Null {
		return Variable{}, false
	}
	return Variable{name: name, entry: entry}, true
}

// Name returns the catalog key of the variable.
func (v Variable) Name() string {
	return v.name
}

// Entity returns the entity the variable is defined on, when declared.
func (v Variable) Entity() string {
	return v.entry.Get("entity").String()
}

// Raw returns the catalog entry.
func (v Variable) Raw() json.RawMessage {
	return json.RawMessage(v.entry.Raw)
}

// IsInput reports whether the variable has no formulas.
func (v Variable) IsInput() bool {
	formulas := v.entry.Get("formulas")
	return !formulas.Exists() || formulas.Type == gjson.Null
}

// formula returns the formula in force at date: the latest start date that is
// not after date, compared as ISO strings. A null formula reports false.
func (v Variable) formula(date string) (gjson.Result, bool) {
	formulas := v.entry.Get("formulas")
	if !formulas.IsObject() {
		return gjson.Result{}, false
	}
	var dates []string
	formulas.ForEach(func(key, _ gjson.Result) bool {
		dates = append(dates, key.String())
		return true
	})
	slices.Sort(dates)
	slices.Reverse(dates)
	for _, start := range dates {
		if start > date {
			continue
		}
		formula := formulas.Get(gjson.Escape(start))
		if formula.Type == gjson.Null || !formula.IsObject() {
			return gjson.Result{}, false
		}
		return formula, true
	}
	return gjson.Result{}, false
}

// InputVariables yields, depth-first, the input variables variable depends on
// at date. A variable without formulas is its own input.
func (v Variables) InputVariables(variable Variable, date string) iter.Seq[Variable] {
	return func(yield func(Variable) bool) {
		encountered := make(map[string]struct{})
		v.walkInputs(variable, date, encountered, yield)
	}
}

func (v Variables) walkInputs(variable Variable, date string, encountered map[string]struct{}, yield func(Variable) bool) bool {
	if _, seen := encountered[variable.name]; seen {
		return true
	}
	encountered[variable.name] = struct{}{}

	if variable.IsInput() {
		return yield(variable)
	}
	formula, ok := variable.formula(date)
	if !ok {
		return true
	}
	for _, name := range formula.Get("variables").Array() {
		referred, ok := v.Variable(name.String())
		if !ok {
			continue
		}
		if !v.walkInputs(referred, date, encountered, yield) {
			return false
		}
	}
	return true
}

// VariableParameters yields the parameters referenced by the formulas variable
// depends on at date. Referred variables are visited before the variable's
// own parameters; each parameter is yielded once and names that do not
// resolve in parameters are skipped.
func (v Variables) VariableParameters(variable Variable, date string, parameters Parameters) iter.Seq[json.RawMessage] {
	return func(yield func(json.RawMessage) bool) {
		w := parameterWalk{
			variables:           v,
			parameters:          parameters,
			date:                date,
			encounteredVariable: make(map[string]struct{}),
			encounteredParam:    make(map[string]struct{}),
			yield:               yield,
		}
		w.visit(variable)
	}
}

type parameterWalk struct {
	variables           Variables
	parameters          Parameters
	date                string
	encounteredVariable map[string]struct{}
	encounteredParam    map[string]struct{}
	yield               func(json.RawMessage) bool
}

func (w *parameterWalk) visit(variable Variable) bool {
	if _, seen := w.encounteredVariable[variable.name]; seen {
		return true
	}
	w.encounteredVariable[variable.name] = struct{}{}

	if variable.IsInput() {
		return true
	}
	formula, ok := variable.formula(w.date)
	if !ok {
		return true
	}
	for _, name := range formula.Get("variables").Array() {
		referred, ok := w.variables.Variable(name.String())
		if !ok {
			continue
		}
		if !w.visit(referred) {
			return false
		}
	}
	for _, name := range formula.Get("parameters").Array() {
		key := name.String()
		if _, seen := w.encounteredParam[key]; seen {
			continue
		}
		w.encounteredParam[key] = struct{}{}
		parameter, ok := w.parameters.Parameter(key)
		if !ok {
			continue
		}
		if !w.yield(parameter) {
			return false
		}
	}
	return true
}
