package casetype

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
)

func weight(v float64) *float64 {
	return &v
}

func TestNewSituationShape(t *testing.T) {
	ct := CaseType{RevenuActivite: 50000, RevenuCapital: 1200, RevenuRemplacement: 300, RevenuRetraite: 40}
	data, err := NewSituation(ct, "2021").JSON()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	want := `{"familles":{"Famille 1":{"parents":["Adulte 1"],"enfants":[]}},` +
		`"foyers_fiscaux":{"Foyer fiscal 1":{"declarants":["Adulte 1"],"personnes_a_charge":[],"assiette_csg_revenus_capital":{"2021":1200}}},` +
		`"individus":{"Adulte 1":{"salaire_de_base":{"2021":50000},"chomage_brut":{"2021":300},"retraite_brute":{"2021":40}}},` +
		`"menages":{"Menage 1":{"personne_de_reference":["Adulte 1"],"conjoint":[],"enfants":[]}}}`
	if string(data) != want {
		t.Fatalf("situation =\n%s\nwant\n%s", data, want)
	}
}

func TestTabularSituationIndexesFromZero(t *testing.T) {
	cases := []CaseType{
		{RevenuActivite: 1},
		{RevenuCapital: 2},
		{RevenuRetraite: 3},
	}
	situation := TabularSituation(cases, "2020")

	for _, entities := range []int{len(situation.Familles), len(situation.FoyersFiscaux), len(situation.Individus), len(situation.Menages)} {
		if entities != 3 {
			t.Fatalf("entity count = %d", entities)
		}
	}
	if got := situation.Individus["Adulte 0"].SalaireDeBase["2020"]; got != 1 {
		t.Fatalf("Adulte 0 salaire = %v", got)
	}
	if got := situation.FoyersFiscaux["Foyer fiscal 1"].AssietteCSGRevenusCapital["2020"]; got != 2 {
		t.Fatalf("Foyer fiscal 1 capital = %v", got)
	}
	if got := situation.Menages["Menage 2"].PersonneDeReference; len(got) != 1 || got[0] != "Adulte 2" {
		t.Fatalf("Menage 2 reference = %v", got)
	}
	if _, ok := situation.Individus["Adulte 3"]; ok {
		t.Fatal("unexpected Adulte 3")
	}
}

func TestCaseTypeRequiresIncomes(t *testing.T) {
	var ct CaseType
	err := json.Unmarshal([]byte(`{"revenu_activite":1,"revenu_capital":0,"revenu_retraite":0}`), &ct)
	if err == nil || !strings.Contains(err.Error(), "revenu_remplacement") {
		t.Fatalf("err = %v", err)
	}

	if err := json.Unmarshal([]byte(`{"revenu_activite":1,"revenu_capital":2,"revenu_remplacement":3,"revenu_retraite":4,"wprm":10}`), &ct); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ct.RevenuRetraite != 4 || ct.Weight() != 10 {
		t.Fatalf("case type = %+v", ct)
	}
}

func TestWeightedSum(t *testing.T) {
	cases := []CaseType{{WPRM: weight(10)}, {}, {WPRM: weight(0.5)}}
	total, err := WeightedSum([]float64{-100, -20, -4}, cases)
	if err != nil {
		t.Fatalf("weighted sum: %v", err)
	}
	if total != -1022 {
		t.Fatalf("total = %v", total)
	}

	if _, err := WeightedSum([]float64{1}, cases); err == nil {
		t.Fatal("expected length mismatch")
	}
}

func TestLoadPopulationCSV(t *testing.T) {
	dataset := strings.Join([]string{
		"idfoy,salaire_de_base,retraite_brute,f4ba,chomage_brut,wprm,age",
		"12,1000,0,10,0,2.5,40",
		"3,0,500,0,0,8,70",
		"12,200,0,5,100,9,38",
		"3.0,0,250,0,0,,68",
	}, "\n")

	cases, err := LoadPopulationCSV(strings.NewReader(dataset))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("households = %d", len(cases))
	}

	first := cases[0]
	if first.RevenuRetraite != 750 || first.Weight() != 8 {
		t.Fatalf("household 3 = %+v", first)
	}
	second := cases[1]
	if second.RevenuActivite != 1200 || second.RevenuCapital != 15 || second.RevenuRemplacement != 100 || second.Weight() != 2.5 {
		t.Fatalf("household 12 = %+v", second)
	}
}

func TestLoadPopulationCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		dataset string
		want    string
	}{
		{name: "empty", dataset: "", want: "empty"},
		{name: "missing column", dataset: "idfoy,salaire_de_base,retraite_brute,f4ba,chomage_brut\n1,0,0,0,0", want: `"wprm"`},
		{name: "bad number", dataset: "idfoy,salaire_de_base,retraite_brute,f4ba,chomage_brut,wprm\n1,abc,0,0,0,1", want: "line 2 column salaire_de_base"},
		{name: "ragged row", dataset: "idfoy,salaire_de_base,retraite_brute,f4ba,chomage_brut,wprm\n1,0,0", want: "read line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPopulationCSV(strings.NewReader(tt.dataset))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	totals := Summarize([]CaseType{
		{RevenuActivite: 100, WPRM: weight(2)},
		{RevenuActivite: 10, RevenuRetraite: 5},
	})
	if totals.Households != 2 || totals.Weight != 3 || totals.RevenuActivite != 210 || totals.RevenuRetraite != 5 {
		t.Fatalf("totals = %+v", totals)
	}
}

// objectKeys returns the keys of one entity group in document order.
func objectKeys(t *testing.T, data []byte, group string) []string {
	t.Helper()
	var groups map[string]json.RawMessage
	if err := json.Unmarshal(data, &groups); err != nil {
		t.Fatalf("decode situation: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(groups[group]))
	if _, err := dec.Token(); err != nil {
		t.Fatalf("open %s: %v", group, err)
	}
	var keys []string
	for dec.More() {
		token, err := dec.Token()
		if err != nil {
			t.Fatalf("read %s key: %v", group, err)
		}
		keys = append(keys, token.(string))
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			t.Fatalf("read %s value: %v", group, err)
		}
	}
	return keys
}

func TestTabularSituationKeepsHouseholdOrder(t *testing.T) {
	cases := make([]CaseType, 12)
	for i := range cases {
		cases[i] = CaseType{RevenuActivite: float64(1000 * i)}
	}
	data, err := TabularSituation(cases, "2021").JSON()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	prefixes := map[string]string{
		"familles":       "Famille ",
		"foyers_fiscaux": "Foyer fiscal ",
		"individus":      "Adulte ",
		"menages":        "Menage ",
	}
	for group, prefix := range prefixes {
		keys := objectKeys(t, data, group)
		if len(keys) != len(cases) {
			t.Fatalf("%s has %d entities, want %d", group, len(keys), len(cases))
		}
		for i, key := range keys {
			if want := prefix + strconv.Itoa(i); key != want {
				t.Fatalf("%s position %d holds %q, want %q", group, i, key, want)
			}
		}
	}

	var decoded struct {
		Individus map[string]Individu `json:"individus"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := decoded.Individus["Adulte 10"].SalaireDeBase["2021"]; got != 10000 {
		t.Fatalf("Adulte 10 salaire = %v", got)
	}
}

func TestSituationEncodesUnbuiltEntitiesSorted(t *testing.T) {
	situation := Situation{
		Individus: map[string]Individu{
			"b": {SalaireDeBase: map[string]float64{"2021": 1}},
			"a": {SalaireDeBase: map[string]float64{"2021": 2}},
		},
	}
	data, err := situation.JSON()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if keys := objectKeys(t, data, "individus"); strings.Join(keys, ",") != "a,b" {
		t.Fatalf("individus order = %v", keys)
	}
	if !strings.Contains(string(data), `"familles":null`) {
		t.Fatalf("expected null familles in %s", data)
	}
}
