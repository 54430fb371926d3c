package assets

import (
	_ "embed"
)

// CatalogYAML holds the disease and treatment reference data.
//
//go:embed catalog.yaml
var CatalogYAML []byte

// PredictionSchema validates responses from the prediction service.
//
//go:embed prediction.schema.json
var PredictionSchema string

// FertilizerSchema validates responses from the fertilizer service.
//
//go:embed fertilizer.schema.json
var FertilizerSchema string
