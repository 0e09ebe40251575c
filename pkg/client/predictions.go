package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	app "github.com/turtacn/AdsorpNET/internal/application/synthesis"
	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// PredictRequest is one set of measurements to predict a recipe for.
type PredictRequest struct {
	synthesis.Measurements
	ApproximateWs bool  `json:"approx_ws,omitempty"`
	Regeneration  *bool `json:"regeneration,omitempty"`
}

// ListOptions filters a history listing. Zero fields are omitted.
type ListOptions struct {
	Metal  string
	Ligand string
	Since  time.Time
	Limit  int
	Offset int
}

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Metal != "" {
		q.Set("metal", o.Metal)
	}
	if o.Ligand != "" {
		q.Set("ligand", o.Ligand)
	}
	if !o.Since.IsZero() {
		q.Set("since", o.Since.UTC().Format(time.RFC3339))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// PredictionsClient covers /api/v1/predictions.
type PredictionsClient struct {
	client *Client
}

// Predict runs the pipeline once on the server.
func (p *PredictionsClient) Predict(ctx context.Context, req *PredictRequest) (*synthesis.Recipe, error) {
	if req == nil {
		return nil, errors.NewInvalidInputError("request is required")
	}
	var out synthesis.Recipe
	if err := p.client.post(ctx, "/api/v1/predictions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PredictBatch submits items as one batch. Per-item failures are reported
// in the output, not as an error.
func (p *PredictionsClient) PredictBatch(ctx context.Context, items []*PredictRequest) (*app.BatchOutput, error) {
	if len(items) == 0 {
		return nil, errors.NewInvalidInputError("batch contains no measurements")
	}
	body := struct {
		Items []*PredictRequest `json:"items"`
	}{Items: items}
	var out app.BatchOutput
	if err := p.client.post(ctx, "/api/v1/predictions/batch", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches a stored prediction.
func (p *PredictionsClient) Get(ctx context.Context, id string) (*synthesis.Recipe, error) {
	if id == "" {
		return nil, errors.NewInvalidInputError("prediction id is required")
	}
	var out synthesis.Recipe
	if err := p.client.get(ctx, "/api/v1/predictions/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List pages through the prediction history, newest first.
func (p *PredictionsClient) List(ctx context.Context, opts ListOptions) (*app.ListResult, error) {
	var out app.ListResult
	if err := p.client.get(ctx, "/api/v1/predictions"+opts.query(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
