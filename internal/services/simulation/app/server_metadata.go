package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	apperrors "github.com/leximpact/socio-fiscal-api/internal/platform/errors"
	"github.com/leximpact/socio-fiscal-api/internal/platform/timeouts"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/metadata"
)

type ancestorsResponse struct {
	Parameter json.RawMessage   `json:"parameter"`
	Ancestors []json.RawMessage `json:"ancestors"`
}

func (h *handler) parameters(ctx context.Context) (metadata.Parameters, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.MetadataLoad)
	defer cancel()
	return h.metadata.Parameters(ctx)
}

func (h *handler) variables(ctx context.Context) (metadata.Variables, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.MetadataLoad)
	defer cancel()
	return h.metadata.Variables(ctx)
}

func (h *handler) listParameters(w http.ResponseWriter, r *http.Request) {
	parameters, err := h.parameters(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeRawJSON(w, http.StatusOK, parameters.Raw())
}

func (h *handler) getParameter(w http.ResponseWriter, r *http.Request) {
	parameters, err := h.parameters(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := r.PathValue("name")
	parameter, ok := parameters.Parameter(name)
	if !ok {
		writeError(w, r, parameterNotFound(name))
		return
	}
	writeRawJSON(w, http.StatusOK, parameter)
}

// getParameterAncestors answers even when the parameter is missing, with the
// ancestors crossed before the walk stopped.
func (h *handler) getParameterAncestors(w http.ResponseWriter, r *http.Request) {
	parameters, err := h.parameters(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	parameter, ancestors, ok := parameters.ParameterWithAncestors(r.PathValue("name"))
	if !ok {
		parameter = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, ancestorsResponse{Parameter: parameter, Ancestors: ancestors})
}

func (h *handler) listVariables(w http.ResponseWriter, r *http.Request) {
	variables, err := h.variables(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeRawJSON(w, http.StatusOK, variables.Raw())
}

func (h *handler) getVariable(w http.ResponseWriter, r *http.Request) {
	variable, _, ok := h.lookupVariable(w, r)
	if !ok {
		return
	}
	writeRawJSON(w, http.StatusOK, variable.Raw())
}

func (h *handler) getInputVariables(w http.ResponseWriter, r *http.Request) {
	variable, variables, ok := h.lookupVariable(w, r)
	if !ok {
		return
	}
	date, ok := pathDate(w, r)
	if !ok {
		return
	}

	inputs := make([]json.RawMessage, 0)
	for input := range variables.InputVariables(variable, date) {
		inputs = append(inputs, input.Raw())
	}
	writeJSON(w, http.StatusOK, inputs)
}

func (h *handler) getVariableParameters(w http.ResponseWriter, r *http.Request) {
	variable, variables, ok := h.lookupVariable(w, r)
	if !ok {
		return
	}
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	parameters, err := h.parameters(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	referenced := make([]json.RawMessage, 0)
	for parameter := range variables.VariableParameters(variable, date, parameters) {
		referenced = append(referenced, parameter)
	}
	writeJSON(w, http.StatusOK, referenced)
}

func (h *handler) lookupVariable(w http.ResponseWriter, r *http.Request) (metadata.Variable, metadata.Variables, bool) {
	variables, err := h.variables(r.Context())
	if err != nil {
		writeError(w, r, err)
		return metadata.Variable{}, metadata.Variables{}, false
	}
	name := r.PathValue("name")
	variable, ok := variables.Variable(name)
	if !ok {
		writeError(w, r, apperrors.WithMetadata(apperrors.CodeVariableNotFound,
			"variable not found", map[string]string{"Name": name}))
		return metadata.Variable{}, metadata.Variables{}, false
	}
	return variable, variables, true
}

// pathDate reads the {date} segment, which must be an ISO calendar date so it
// compares correctly with formula start dates.
func pathDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.PathValue("date")
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		writeError(w, r, apperrors.WrapWithMetadata(apperrors.CodeInvalidDate,
			"invalid date", map[string]string{"Date": date}, err))
		return "", false
	}
	return date, true
}

func parameterNotFound(name string) error {
	return apperrors.WithMetadata(apperrors.CodeParameterNotFound,
		"parameter not found", map[string]string{"Name": name})
}
