package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"procurement/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// ErrAIUnavailable is returned when no API key is configured.
var ErrAIUnavailable = errors.New("AI drafting is not configured")

// Drafter turns a free-text procurement request into a document draft.
type Drafter interface {
	DraftDocument(ctx context.Context, docType core.DocumentType, text string) (*DocumentDraft, error)
}

type Agent struct {
	client *openai.Client
}

// NewAgent returns an Agent. With an empty apiKey every call fails with
// ErrAIUnavailable.
func NewAgent(apiKey string) *Agent {
	if apiKey == "" {
		return &Agent{}
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Agent{client: &client}
}

func (a *Agent) DraftDocument(ctx context.Context, docType core.DocumentType, text string) (*DocumentDraft, error) {
	if a.client == nil {
		return nil, ErrAIUnavailable
	}
	if !docType.Valid() {
		return nil, &core.ValidationError{Fields: map[string]string{"type": fmt.Sprintf("unknown document type %q", docType)}}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &core.ValidationError{Fields: map[string]string{"text": "is required"}}
	}

	schemaMap, err := draftSchema()
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(buildPrompt(docType, text)),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "procurement_document_draft",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("Header and line items for a procurement document"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	return ParseDraft(docType, content)
}

func buildPrompt(docType core.DocumentType, text string) string {
	pricing := "Leave unit_price empty: quote requests carry no prices."
	if docType.CarriesPricing() {
		pricing = `Set unit_price to the agreed price per unit as an exact decimal string (e.g. "12.50"), or empty if unknown.`
	}
	return fmt.Sprintf(`You are a procurement assistant.
Turn the request below into a draft %s.
Rules:
1. One line item per distinct material or service.
2. quantity is a positive decimal string; unit is a short unit code (e.g. "UND", "KG", "M").
3. currency is USD unless the request states bolivars, then VES with exchange_rate as a decimal string.
4. exchange_rate is empty for USD.
5. %s
6. Provide a confidence score (0.0-1.0) and explain your reasoning.

Request: %s`, strings.ToLower(strings.ReplaceAll(string(docType), "_", " ")), pricing, text)
}

func draftSchema() (map[string]any, error) {
	schemaJSON, err := json.Marshal(generateSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}

func generateSchema() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v DocumentDraft
	return reflector.Reflect(v)
}
