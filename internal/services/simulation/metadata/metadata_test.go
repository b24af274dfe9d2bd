package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	apperrors "github.com/leximpact/socio-fiscal-api/internal/platform/errors"
)

func loadFixtures(t *testing.T) (Parameters, Variables) {
	t.Helper()
	cache := NewCache("testdata")
	parameters, err := cache.Parameters(context.Background())
	if err != nil {
		t.Fatalf("load parameters: %v", err)
	}
	variables, err := cache.Variables(context.Background())
	if err != nil {
		t.Fatalf("load variables: %v", err)
	}
	return parameters, variables
}

func nameOf(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var node struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &node); err != nil {
		t.Fatalf("decode node: %v", err)
	}
	return node.Name
}

func TestParameterLookup(t *testing.T) {
	parameters, _ := loadFixtures(t)

	raw, ok := parameters.Parameter("prelevements_sociaux.contributions.csg.activite.imposable.taux")
	if !ok {
		t.Fatal("expected parameter to resolve")
	}
	if got := nameOf(t, raw); got != "prelevements_sociaux.contributions.csg.activite.imposable.taux" {
		t.Fatalf("name = %q", got)
	}

	for _, name := range []string{
		"prelevements_sociaux.absent",
		"prelevements_sociaux.contributions.csg.abattement.deeper",
		"",
		"prelevements_sociaux..csg",
	} {
		if _, ok := parameters.Parameter(name); ok {
			t.Fatalf("expected %q not to resolve", name)
		}
	}
}

func TestParameterWithAncestors(t *testing.T) {
	parameters, _ := loadFixtures(t)

	raw, ancestors, ok := parameters.ParameterWithAncestors("prelevements_sociaux.contributions.csg.abattement")
	if !ok {
		t.Fatal("expected parameter to resolve")
	}
	if got := nameOf(t, raw); got != "prelevements_sociaux.contributions.csg.abattement" {
		t.Fatalf("name = %q", got)
	}
	// The unnamed root is not an ancestor.
	want := []string{"prelevements_sociaux", "prelevements_sociaux.contributions", "prelevements_sociaux.contributions.csg"}
	var got []string
	for _, ancestor := range ancestors {
		got = append(got, nameOf(t, ancestor))
	}
	if !slices.Equal(got, want) {
		t.Fatalf("ancestors = %v, want %v", got, want)
	}

	_, ancestors, ok = parameters.ParameterWithAncestors("prelevements_sociaux.absent.taux")
	if ok {
		t.Fatal("expected missing parameter")
	}
	if len(ancestors) != 1 || nameOf(t, ancestors[0]) != "prelevements_sociaux" {
		t.Fatalf("partial ancestors = %d", len(ancestors))
	}
}

func TestMissingID(t *testing.T) {
	parameters, _ := loadFixtures(t)

	if got := parameters.MissingID("prelevements_sociaux.contributions.csg.activite.deductible.taux"); got != "" {
		t.Fatalf("missing id = %q, want none", got)
	}
	if got := parameters.MissingID("prelevements_sociaux.contributions.crds.taux"); got != "crds" {
		t.Fatalf("missing id = %q, want crds", got)
	}
}

func TestVariableLookup(t *testing.T) {
	_, variables := loadFixtures(t)

	variable, ok := variables.Variable("csg")
	if !ok {
		t.Fatal("expected csg")
	}
	if variable.Name() != "csg" || variable.Entity() != "individu" {
		t.Fatalf("variable = %q/%q", variable.Name(), variable.Entity())
	}
	if variable.IsInput() {
		t.Fatal("csg has formulas")
	}
	if _, ok := variables.Variable("inconnue"); ok {
		t.Fatal("expected unknown variable")
	}
	if variables.Len() != 10 {
		t.Fatalf("len = %d", variables.Len())
	}
}

func collectInputs(t *testing.T, variables Variables, name, date string) []string {
	t.Helper()
	variable, ok := variables.Variable(name)
	if !ok {
		t.Fatalf("variable %q not found", name)
	}
	var names []string
	for input := range variables.InputVariables(variable, date) {
		names = append(names, input.Name())
	}
	return names
}

func TestInputVariables(t *testing.T) {
	_, variables := loadFixtures(t)

	tests := []struct {
		name     string
		variable string
		date     string
		want     []string
	}{
		{name: "input variable yields itself", variable: "salaire_de_base", date: "2021-01-01", want: []string{"salaire_de_base"}},
		{name: "transitive inputs once each", variable: "csg", date: "2021-01-01", want: []string{"salaire_de_base", "chomage_brut"}},
		{name: "older formula", variable: "csg_imposable_salaire", date: "2010-06-01", want: []string{"retraite_brute"}},
		{name: "before first formula", variable: "csg", date: "2017-12-31", want: nil},
		{name: "null formula", variable: "supprimee", date: "2021-01-01", want: nil},
		{name: "formula start date inclusive", variable: "supprimee", date: "2010-01-01", want: []string{"salaire_de_base"}},
		{name: "cycle", variable: "boucle_a", date: "2021-01-01", want: []string{"salaire_de_base", "chomage_brut"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectInputs(t, variables, tt.variable, tt.date)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("inputs = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInputVariablesStopsEarly(t *testing.T) {
	_, variables := loadFixtures(t)
	variable, _ := variables.Variable("csg")

	count := 0
	for range variables.InputVariables(variable, "2021-01-01") {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("count = %d", count)
	}
}

func TestVariableParameters(t *testing.T) {
	parameters, variables := loadFixtures(t)
	variable, _ := variables.Variable("csg")

	var got []string
	for parameter := range variables.VariableParameters(variable, "2021-01-01", parameters) {
		got = append(got, nameOf(t, parameter))
	}
	want := []string{
		"prelevements_sociaux.contributions.csg.abattement",
		"prelevements_sociaux.contributions.csg.activite.imposable.taux",
		"prelevements_sociaux.contributions.csg.activite.deductible.taux",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("parameters = %v, want %v", got, want)
	}
}

func TestVariableParametersOfInputVariable(t *testing.T) {
	parameters, variables := loadFixtures(t)
	variable, _ := variables.Variable("salaire_de_base")

	for parameter := range variables.VariableParameters(variable, "2021-01-01", parameters) {
		t.Fatalf("unexpected parameter %s", parameter)
	}
}

func TestCacheRetriesFailedLoad(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir)

	_, err := cache.Parameters(context.Background())
	if err == nil {
		t.Fatal("expected load error")
	}
	if apperrors.CodeOf(err) != apperrors.CodeMetadataUnavailable {
		t.Fatalf("code = %s", apperrors.CodeOf(err))
	}

	if err := os.WriteFile(filepath.Join(dir, ParametersFile), []byte(`{"children":{}}`), 0o600); err != nil {
		t.Fatalf("write parameters: %v", err)
	}
	parameters, err := cache.Parameters(context.Background())
	if err != nil {
		t.Fatalf("retry load: %v", err)
	}
	if string(parameters.Raw()) != `{"children":{}}` {
		t.Fatalf("raw = %s", parameters.Raw())
	}

	// Loaded documents stay in memory.
	if err := os.Remove(filepath.Join(dir, ParametersFile)); err != nil {
		t.Fatalf("remove parameters: %v", err)
	}
	if _, err := cache.Parameters(context.Background()); err != nil {
		t.Fatalf("cached load: %v", err)
	}
}

func TestCacheRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, VariablesFile), []byte(`{"csg":`), 0o600); err != nil {
		t.Fatalf("write variables: %v", err)
	}
	_, err := NewCache(dir).Variables(context.Background())
	if !errors.Is(err, apperrors.New(apperrors.CodeMetadataUnavailable, "")) {
		t.Fatalf("err = %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, VariablesFile), []byte(`[]`), 0o600); err != nil {
		t.Fatalf("write variables: %v", err)
	}
	if _, err := NewCache(dir).Variables(context.Background()); err == nil {
		t.Fatal("expected non-object catalog to fail")
	}
}

func TestCacheConcurrentFirstLoad(t *testing.T) {
	cache := NewCache("testdata")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Variables(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("load: %v", err)
		}
	}
}

func TestCacheHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewCache("testdata").Parameters(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}
