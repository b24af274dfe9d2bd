package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"

	apperrors "github.com/leximpact/socio-fiscal-api/internal/platform/errors"
	"github.com/leximpact/socio-fiscal-api/internal/platform/telemetry/metrics"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/casetype"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/engine"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/reform"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/storage"
)

const (
	csgVariable = "csg"

	maxRequestBodyBytes = 8 << 20
)

type csgRequest struct {
	CaseTypes []json.RawMessage `json:"castype"`
}

type csgResult struct {
	CSG float64 `json:"csg"`
}

type runsResponse struct {
	Runs []storage.Run `json:"runs"`
}

func (h *handler) calculateCSG(w http.ResponseWriter, r *http.Request) {
	var payload csgRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	if len(payload.CaseTypes) == 0 {
		writeError(w, r, invalidPayload(casetype.ErrNoCaseTypes))
		return
	}
	cases := make([]casetype.CaseType, len(payload.CaseTypes))
	for i, raw := range payload.CaseTypes {
		if err := json.Unmarshal(raw, &cases[i]); err != nil {
			writeError(w, r, apperrors.WrapWithMetadata(apperrors.CodeInvalidCaseType, "invalid case type",
				map[string]string{"Index": strconv.Itoa(i), "Reason": err.Error()}, err))
			return
		}
	}

	values, err := h.calculateCaseTypes(r.Context(), cases, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	results := make([]csgResult, len(values))
	for i, value := range values {
		results[i] = csgResult{CSG: value}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *handler) calculateCSGPopulation(w http.ResponseWriter, r *http.Request) {
	run, err := h.populationRun(r.Context(), storage.KindCSGPopulation, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run.Total)
}

func (h *handler) calculateReformCSG(w http.ResponseWriter, r *http.Request) {
	var payload reform.CSGPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	run, err := h.populationRun(r.Context(), storage.KindReformCSG, reform.CSG(payload))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run.Total)
}

func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, r, apperrors.New(apperrors.CodeRunStoreDisabled, "run store is not configured"))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, invalidPayload(fmt.Errorf("limit %q is not an integer", raw)))
			return
		}
		limit = parsed
	}
	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runsResponse{Runs: runs})
}

// calculateCaseTypes returns the CSG of every case type, in order.
func (h *handler) calculateCaseTypes(ctx context.Context, cases []casetype.CaseType, changes reform.Reform) ([]float64, error) {
	situation, err := casetype.TabularSituation(cases, h.csgPeriod).JSON()
	if err != nil {
		return nil, err
	}
	result, err := h.engine.Calculate(ctx, engine.Request{
		CountryPackage: h.countryPackage,
		Situation:      situation,
		Period:         h.csgPeriod,
		Variables:      []string{csgVariable},
		Reform:         changes,
	})
	if err != nil {
		return nil, err
	}
	csg, err := result.Variable(csgVariable)
	if err != nil {
		return nil, err
	}
	if len(csg.Values) != len(cases) {
		return nil, apperrors.New(apperrors.CodeEngineMismatch,
			fmt.Sprintf("engine returned %d csg values for %d case types", len(csg.Values), len(cases)))
	}
	return csg.Values, nil
}

// populationRun computes the weighted CSG total of the population dataset,
// reusing a stored run when the dataset, period and reform are unchanged.
func (h *handler) populationRun(ctx context.Context, kind string, changes reform.Reform) (storage.Run, error) {
	dataset, err := os.ReadFile(h.populationCSV)
	if err != nil {
		return storage.Run{}, apperrors.Wrap(apperrors.CodeDatasetUnavailable, "read population dataset", err)
	}
	var reformJSON json.RawMessage
	if changes != nil {
		if reformJSON, err = json.Marshal(changes); err != nil {
			return storage.Run{}, fmt.Errorf("encode reform: %w", err)
		}
	}
	key := storage.CacheKey(kind, h.csgPeriod, reformJSON, dataset)

	if h.runs != nil {
		run, err := h.runs.LookupRun(ctx, key)
		switch {
		case err == nil:
			metrics.RecordRunCacheLookup(kind, true)
			return run, nil
		case errors.Is(err, storage.ErrNotFound):
			metrics.RecordRunCacheLookup(kind, false)
		default:
			log.Printf("simulation: run lookup failed: kind=%q err=%v", kind, err)
		}
	}

	cases, err := casetype.LoadPopulationCSV(bytes.NewReader(dataset))
	if err != nil {
		return storage.Run{}, apperrors.WrapWithMetadata(apperrors.CodeDatasetInvalid, "parse population dataset",
			map[string]string{"Reason": err.Error()}, err)
	}
	if len(cases) == 0 {
		return storage.Run{}, apperrors.WithMetadata(apperrors.CodeDatasetInvalid, "population dataset has no household",
			map[string]string{"Reason": "no household"})
	}
	values, err := h.calculateCaseTypes(ctx, cases, changes)
	if err != nil {
		return storage.Run{}, err
	}
	total, err := casetype.WeightedSum(values, cases)
	if err != nil {
		return storage.Run{}, apperrors.Wrap(apperrors.CodeEngineMismatch, "weight population results", err)
	}

	run := storage.Run{
		Kind:       kind,
		CacheKey:   key,
		Reform:     reformJSON,
		Period:     h.csgPeriod,
		Households: len(cases),
		Total:      total,
	}
	if h.runs != nil {
		saved, err := h.runs.SaveRun(ctx, run)
		if err != nil {
			log.Printf("simulation: run save failed: kind=%q err=%v", kind, err)
			return run, nil
		}
		return saved, nil
	}
	return run, nil
}

func decodeBody(r *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return invalidPayload(errors.New("request body is empty"))
		}
		return invalidPayload(err)
	}
	return nil
}

func invalidPayload(err error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeInvalidPayload, "invalid payload",
		map[string]string{"Reason": err.Error()}, err)
}
