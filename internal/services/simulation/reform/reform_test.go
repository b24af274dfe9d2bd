package reform

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/metadata"
)

func TestNormalize(t *testing.T) {
	reform, err := Normalize(json.RawMessage(`{
		"prelevements_sociaux.contributions.csg.activite.imposable.taux": {"start": "2021-01-01", "value": 0.1},
		"impot_revenu.bareme": null
	}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !slices.Equal(reform.Names(), []string{CSGActiviteImposableTaux}) {
		t.Fatalf("names = %v", reform.Names())
	}
	change := reform[CSGActiviteImposableTaux]
	if change.Start != "2021-01-01" || change.Stop != "" || string(change.Value) != "0.1" {
		t.Fatalf("change = %+v", change)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	for _, raw := range []string{``, `null`, `{}`, `{"a.b": null}`} {
		reform, err := Normalize(json.RawMessage(raw))
		if err != nil {
			t.Fatalf("normalize %q: %v", raw, err)
		}
		if reform != nil {
			t.Fatalf("normalize %q = %v, want nil", raw, reform)
		}
	}
	if _, err := Normalize(json.RawMessage(`[1]`)); err == nil {
		t.Fatal("expected error for non-object reform")
	}
	if _, err := Normalize(json.RawMessage(`{"a.b": 3}`)); err == nil {
		t.Fatal("expected error for non-object change")
	}
}

func TestValidate(t *testing.T) {
	parameters, err := metadata.ParseParameters([]byte(`{
		"children": {"prelevements_sociaux": {"name": "prelevements_sociaux", "children": {
			"contributions": {"name": "prelevements_sociaux.contributions", "children": {
				"csg": {"name": "prelevements_sociaux.contributions.csg", "children": {
					"activite": {"name": "prelevements_sociaux.contributions.csg.activite", "children": {
						"imposable": {"name": "i", "children": {"taux": {"name": "t"}}}
					}}
				}}
			}}
		}}}
	}`))
	if err != nil {
		t.Fatalf("parse parameters: %v", err)
	}

	problems := Validate(CSG(CSGPayload{ActiviteImposableTaux: 0.1, ActiviteDeductibleTaux: 0.05}), parameters)
	if len(problems) != 1 {
		t.Fatalf("problems = %v", problems)
	}
	if got := problems[CSGActiviteDeductibleTaux]; got != "Parameter doesn't exist. Missing deductible" {
		t.Fatalf("problem = %q", got)
	}

	if problems := Validate(Reform{CSGActiviteImposableTaux: {}}, parameters); problems != nil {
		t.Fatalf("problems = %v", problems)
	}
}

func TestCSG(t *testing.T) {
	var payload CSGPayload
	if err := json.Unmarshal([]byte(`{"csg_activite_imposable_taux":0.024,"csg_activite_deductible_taux":0.068}`), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	reform := CSG(payload)

	data, err := json.Marshal(reform)
	if err != nil {
		t.Fatalf("encode reform: %v", err)
	}
	want := `{"prelevements_sociaux.contributions.csg.activite.deductible.taux":{"start":"1900-01-01","stop":"2099-12-31","value":0.068},` +
		`"prelevements_sociaux.contributions.csg.activite.imposable.taux":{"start":"1900-01-01","stop":"2099-12-31","value":0.024}}`
	if string(data) != want {
		t.Fatalf("reform = %s", data)
	}
}

func TestCSGPayloadRequiresRates(t *testing.T) {
	var payload CSGPayload
	if err := json.Unmarshal([]byte(`{"csg_activite_imposable_taux":0.024}`), &payload); err == nil {
		t.Fatal("expected missing deductible rate")
	}
}
