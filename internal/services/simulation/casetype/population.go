package casetype

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// Population dataset columns.
const (
	ColumnHousehold    = "idfoy"
	ColumnActivite     = "salaire_de_base"
	ColumnRetraite     = "retraite_brute"
	ColumnCapital      = "f4ba"
	ColumnRemplacement = "chomage_brut"
	ColumnWeight       = "wprm"
)

var populationColumns = []string{
	ColumnHousehold,
	ColumnActivite,
	ColumnRetraite,
	ColumnCapital,
	ColumnRemplacement,
	ColumnWeight,
}

// LoadPopulationCSV reads one row per individual and returns one case type per
// tax household, ordered by household id. Incomes are summed over the
// household; the weight comes from its first row.
func LoadPopulationCSV(r io.Reader) ([]CaseType, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("population dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, column := range header {
		index[strings.TrimSpace(column)] = i
	}
	for _, column := range populationColumns {
		if _, ok := index[column]; !ok {
			return nil, fmt.Errorf("missing column %q", column)
		}
	}

	households := make(map[float64]*CaseType)
	var order []float64
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		cell := func(column string) string {
			return strings.TrimSpace(record[index[column]])
		}
		number := func(column string) (float64, error) {
			value, err := strconv.ParseFloat(cell(column), 64)
			if err != nil {
				return 0, fmt.Errorf("line %d column %s: %w", line, column, err)
			}
			return value, nil
		}

		id, err := number(ColumnHousehold)
		if err != nil {
			return nil, err
		}
		var incomes [4]float64
		for i, column := range []string{ColumnActivite, ColumnCapital, ColumnRemplacement, ColumnRetraite} {
			if incomes[i], err = number(column); err != nil {
				return nil, err
			}
		}

		household, ok := households[id]
		if !ok {
			household = &CaseType{}
			if cell(ColumnWeight) != "" {
				weight, err := number(ColumnWeight)
				if err != nil {
					return nil, err
				}
				household.WPRM = &weight
			}
			households[id] = household
			order = append(order, id)
		}
		household.RevenuActivite += incomes[0]
		household.RevenuCapital += incomes[1]
		household.RevenuRemplacement += incomes[2]
		household.RevenuRetraite += incomes[3]
	}

	slices.Sort(order)
	cases := make([]CaseType, 0, len(order))
	for _, id := range order {
		cases = append(cases, *households[id])
	}
	return cases, nil
}
