package ai

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
)

// findingSchema documents the finding shape the model is asked to produce.
// Decoding goes through types.RawFinding, which is far more lenient.
type findingSchema struct {
	Type           string  `json:"type" jsonschema:"required,description=Debt type slug from the catalogs"`
	Severity       string  `json:"severity" jsonschema:"required,enum=critical,enum=high,enum=medium"`
	Location       string  `json:"location" jsonschema:"required,description=filename:line or folder/"`
	Description    string  `json:"description" jsonschema:"required,description=One sentence describing the problem"`
	BusinessImpact string  `json:"business_impact" jsonschema:"description=Plain English: what this costs the business"`
	AnnualCost     float64 `json:"annual_cost" jsonschema:"required,minimum=0,description=Estimated annual cost in USD"`
	FixEffortWeeks float64 `json:"fix_effort_weeks" jsonschema:"required,minimum=0,description=Engineering weeks to fix"`
	RiskFlag       bool    `json:"risk_flag,omitempty" jsonschema:"description=True for security-class problems"`
}

type classificationSchema struct {
	DebtItems []findingSchema `json:"debt_items" jsonschema:"required"`
}

type ticketBlockersSchema struct {
	Key       string   `json:"key" jsonschema:"required,description=Ticket key exactly as given"`
	BlockedBy []string `json:"blocked_by" jsonschema:"required,description=Debt type slugs that block or slow this ticket"`
}

type blockerSchema struct {
	FeatureAnalysis []ticketBlockersSchema `json:"feature_analysis" jsonschema:"required"`
}

var (
	schemaOnce          sync.Once
	classificationJSON  string
	blockerMappingJSON  string
	schemaGenerationErr error
)

// generateSchema reflects a Go type into an indented JSON schema.
func generateSchema(v any) (string, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(v)
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return string(data), nil
}

func loadSchemas() {
	classificationJSON, schemaGenerationErr = generateSchema(&classificationSchema{})
	if schemaGenerationErr != nil {
		return
	}
	blockerMappingJSON, schemaGenerationErr = generateSchema(&blockerSchema{})
}

// ClassificationSchema returns the JSON schema embedded in the classification prompt.
func ClassificationSchema() (string, error) {
	schemaOnce.Do(loadSchemas)
	return classificationJSON, schemaGenerationErr
}

// BlockerSchema returns the JSON schema embedded in the blocker mapping prompt.
func BlockerSchema() (string, error) {
	schemaOnce.Do(loadSchemas)
	return blockerMappingJSON, schemaGenerationErr
}
