package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"schoolbus/internal/model"
)

const maxBody = 1 << 20

// decodeBody decodes a JSON request body, rejecting unknown fields and trailing data.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.Invalid("", "invalid JSON: %v", err)
	}
	if dec.More() {
		return model.Invalid("", "unexpected data after JSON body")
	}
	return nil
}

type mergeRequest struct {
	RouteIDs []string `json:"routeIds"`
}

type scenarioRequest struct {
	Name       string               `json:"name"`
	Type       model.ScenarioType   `json:"type"`
	Parameters json.RawMessage      `json:"parameters"`
	Status     model.ScenarioStatus `json:"status,omitempty"`
}

// params resolves the typed parameters for the requested kind.
func (req scenarioRequest) params() (model.ScenarioParams, error) {
	if strings.TrimSpace(string(req.Type)) == "" {
		return nil, model.Invalid("type", "required (consolidation or bell_time_shift)")
	}
	if len(req.Parameters) == 0 || string(req.Parameters) == "null" {
		return nil, model.Invalid("parameters", "required")
	}
	p, err := model.DecodeParams(req.Type, req.Parameters)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// retryRequest names an unsaved scenario held by the server. The record itself
// is never taken from the caller.
type retryRequest struct {
	ID string `json:"id"`
}

func (req retryRequest) validate() error {
	if strings.TrimSpace(req.ID) == "" {
		return model.Invalid("id", "required")
	}
	return nil
}
