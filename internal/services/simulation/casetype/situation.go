package casetype

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Entity id prefixes, followed by the household suffix.
const (
	famillePrefix     = "Famille "
	foyerFiscalPrefix = "Foyer fiscal "
	individuPrefix    = "Adulte "
	menagePrefix      = "Menage "
)

// Situation is the entity graph of a simulation: plural entity name, then
// entity id, then role or variable.
//
// The engine answers one value per entity in the order the situation lists
// them, so households are encoded in the order they were added rather than in
// map key order.
type Situation struct {
	Familles      map[string]Famille     `json:"familles" yaml:"familles"`
	FoyersFiscaux map[string]FoyerFiscal `json:"foyers_fiscaux" yaml:"foyers_fiscaux"`
	Individus     map[string]Individu    `json:"individus" yaml:"individus"`
	Menages       map[string]Menage      `json:"menages" yaml:"menages"`

	// households holds the suffix of every household, in insertion order.
	households []string
}

// Famille groups parents and children for family benefits.
type Famille struct {
	Parents []string `json:"parents" yaml:"parents"`
	Enfants []string `json:"enfants" yaml:"enfants"`
}

// FoyerFiscal is the tax household.
type FoyerFiscal struct {
	Declarants                []string           `json:"declarants" yaml:"declarants"`
	PersonnesACharge          []string           `json:"personnes_a_charge" yaml:"personnes_a_charge"`
	AssietteCSGRevenusCapital map[string]float64 `json:"assiette_csg_revenus_capital" yaml:"assiette_csg_revenus_capital"`
}

// Individu carries the personal income variables.
type Individu struct {
	SalaireDeBase map[string]float64 `json:"salaire_de_base" yaml:"salaire_de_base"`
	ChomageBrut   map[string]float64 `json:"chomage_brut" yaml:"chomage_brut"`
	RetraiteBrute map[string]float64 `json:"retraite_brute" yaml:"retraite_brute"`
}

// Menage is the dwelling.
type Menage struct {
	PersonneDeReference []string `json:"personne_de_reference" yaml:"personne_de_reference"`
	Conjoint            []string `json:"conjoint" yaml:"conjoint"`
	Enfants             []string `json:"enfants" yaml:"enfants"`
}

// NewSituation builds the single household situation of ct for period.
func NewSituation(ct CaseType, period string) Situation {
	situation := emptySituation(1)
	situation.add("1", ct, period)
	return situation
}

// TabularSituation builds one household per case type, numbered from 0.
func TabularSituation(cases []CaseType, period string) Situation {
	situation := emptySituation(len(cases))
	for i, ct := range cases {
		situation.add(fmt.Sprint(i), ct, period)
	}
	return situation
}

// JSON returns the encoded situation.
func (s Situation) JSON() (json.RawMessage, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode situation: %w", err)
	}
	return data, nil
}

func emptySituation(size int) Situation {
	return Situation{
		Familles:      make(map[string]Famille, size),
		FoyersFiscaux: make(map[string]FoyerFiscal, size),
		Individus:     make(map[string]Individu, size),
		Menages:       make(map[string]Menage, size),
		households:    make([]string, 0, size),
	}
}

func (s *Situation) add(suffix string, ct CaseType, period string) {
	s.households = append(s.households, suffix)
	adult := individuPrefix + suffix
	s.Familles[famillePrefix+suffix] = Famille{
		Parents: []string{adult},
		Enfants: []string{},
	}
	s.FoyersFiscaux[foyerFiscalPrefix+suffix] = FoyerFiscal{
		Declarants:                []string{adult},
		PersonnesACharge:          []string{},
		AssietteCSGRevenusCapital: map[string]float64{period: ct.RevenuCapital},
	}
	s.Individus[adult] = Individu{
		SalaireDeBase: map[string]float64{period: ct.RevenuActivite},
		ChomageBrut:   map[string]float64{period: ct.RevenuRemplacement},
		RetraiteBrute: map[string]float64{period: ct.RevenuRetraite},
	}
	s.Menages[menagePrefix+suffix] = Menage{
		PersonneDeReference: []string{adult},
		Conjoint:            []string{},
		Enfants:             []string{},
	}
}

// MarshalJSON writes every entity group in household order. Entities that
// were not added through the builders follow, sorted by id.
func (s Situation) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	groups := []func() error{
		func() error { return writeEntities(&buf, "familles", s.Familles, s.ids(famillePrefix)) },
		func() error { return writeEntities(&buf, "foyers_fiscaux", s.FoyersFiscaux, s.ids(foyerFiscalPrefix)) },
		func() error { return writeEntities(&buf, "individus", s.Individus, s.ids(individuPrefix)) },
		func() error { return writeEntities(&buf, "menages", s.Menages, s.ids(menagePrefix)) },
	}
	for i, group := range groups {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := group(); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s Situation) ids(prefix string) []string {
	ids := make([]string, len(s.households))
	for i, suffix := range s.households {
		ids[i] = prefix + suffix
	}
	return ids
}

func writeEntities[T any](buf *bytes.Buffer, name string, entities map[string]T, ordered []string) error {
	buf.WriteString(`"` + name + `":`)
	if entities == nil {
		buf.WriteString("null")
		return nil
	}
	seen := make(map[string]struct{}, len(entities))
	ids := make([]string, 0, len(entities))
	for _, id := range ordered {
		if _, ok := entities[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, id := range slices.Sorted(maps.Keys(entities)) {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}

	buf.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return fmt.Errorf("encode %s id: %w", name, err)
		}
		value, err := json.Marshal(entities[id])
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", name, id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return nil
}
