package server

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/engine"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/metadata"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/storage"
	"github.com/leximpact/socio-fiscal-api/internal/testkit/enginefakes"
)

const testParametersJSON = `{
  "name": "",
  "children": {
    "prelevements_sociaux": {
      "name": "prelevements_sociaux",
      "children": {
        "contributions": {
          "name": "prelevements_sociaux.contributions",
          "children": {
            "csg": {
              "name": "prelevements_sociaux.contributions.csg",
              "children": {
                "activite": {
                  "name": "prelevements_sociaux.contributions.csg.activite",
                  "children": {
                    "imposable": {"name": "prelevements_sociaux.contributions.csg.activite.imposable", "children": {"taux": {"name": "prelevements_sociaux.contributions.csg.activite.imposable.taux"}}},
                    "deductible": {"name": "prelevements_sociaux.contributions.csg.activite.deductible", "children": {"taux": {"name": "prelevements_sociaux.contributions.csg.activite.deductible.taux"}}}
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

const testVariablesJSON = `{
  "salaire_de_base": {"name": "salaire_de_base", "entity": "individu"},
  "csg": {
    "name": "csg",
    "entity": "individu",
    "formulas": {
      "2018-01-01": {
        "variables": ["salaire_de_base"],
        "parameters": ["prelevements_sociaux.contributions.csg.activite.imposable.taux"]
      }
    }
  }
}`

const testPopulationCSV = `idfoy,salaire_de_base,retraite_brute,f4ba,chomage_brut,wprm
2,30000,0,0,0,100
1,20000,0,500,0,50
2,10000,0,0,0,100
`

type testEnv struct {
	engine  *enginefakes.Engine
	deps    Dependencies
	dataDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, metadata.ParametersFile), testParametersJSON)
	writeTestFile(t, filepath.Join(dir, metadata.VariablesFile), testVariablesJSON)
	populationPath := filepath.Join(dir, "DCT.csv")
	writeTestFile(t, populationPath, testPopulationCSV)

	fake := &enginefakes.Engine{}
	return &testEnv{
		engine:  fake,
		dataDir: dir,
		deps: Dependencies{
			CountryPackage: "openfisca_france",
			CSGPeriod:      "2021",
			PopulationCSV:  populationPath,
			Metadata:       metadata.NewCache(dir),
			Engine:         fake,
		},
	}
}

func (e *testEnv) withRuns(runs storage.RunStore) *testEnv {
	e.deps.Runs = runs
	return e
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// csgFromSalaries answers one CSG value per individu, -1% of its salary, in
// the order the situation lists individus.
func csgFromSalaries(req engine.Request) (engine.VariableResult, error) {
	var groups map[string]json.RawMessage
	if err := json.Unmarshal(req.Situation, &groups); err != nil {
		return engine.VariableResult{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(groups["individus"]))
	if _, err := dec.Token(); err != nil {
		return engine.VariableResult{}, err
	}
	var values engine.Vector
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return engine.VariableResult{}, err
		}
		var individu struct {
			Salaire map[string]float64 `json:"salaire_de_base"`
		}
		if err := dec.Decode(&individu); err != nil {
			return engine.VariableResult{}, err
		}
		values = append(values, -individu.Salaire[req.Period]/100)
	}
	return engine.VariableResult{Entity: "individus", Values: values}, nil
}
