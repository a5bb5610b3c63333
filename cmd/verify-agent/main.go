// verify-agent sends one free-text request to the drafting model and prints
// the structured draft. Nothing is written to the database.
//
// Usage: go run ./cmd/verify-agent [type] ["request text"]
package main

import (
	"context"
	"fmt"
	"os"

	"procurement/internal/ai"
	"procurement/internal/config"
	"procurement/internal/core"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	config.SetupLogger(cfg)

	if cfg.OpenAIAPIKey == "" {
		log.Fatal().Msg("OPENAI_API_KEY not set")
	}

	docType := core.PurchaseOrder
	if len(os.Args) > 1 {
		if docType, err = core.ParseDocumentType(os.Args[1]); err != nil {
			log.Fatal().Err(err).Msg("bad document type")
		}
	}
	text := "Order 40 sacks of Portland cement at 9.80 USD each and 2 tons of 1/2 inch rebar at 850 USD per ton."
	if len(os.Args) > 2 {
		text = os.Args[2]
	}

	agent := ai.NewAgent(cfg.OpenAIAPIKey)
	fmt.Printf("DRAFTING %s: %s\n", docType, text)
	draft, err := agent.DraftDocument(context.Background(), docType, text)
	if err != nil {
		log.Fatal().Err(err).Msg("draft failed")
	}

	header, items, err := draft.Inputs()
	if err != nil {
		log.Fatal().Err(err).Msg("draft is not usable")
	}

	fmt.Printf("\n--- DRAFT ---\n")
	fmt.Printf("Confidence: %.2f\n", draft.Confidence)
	fmt.Printf("Reasoning:  %s\n", draft.Reasoning)
	fmt.Printf("Currency:   %s\n", header.Currency)
	if header.ExchangeRate != nil {
		fmt.Printf("Rate:       %s\n", header.ExchangeRate.String())
	}
	fmt.Printf("\nItems:\n")
	for _, it := range items {
		fmt.Printf("- %s: %s %s @ %s\n", it.MaterialName, it.Quantity.String(), it.Unit, it.UnitPrice.StringFixed(2))
	}
	if err := core.ValidateLineItems(items); err != nil {
		fmt.Printf("\nWARNING: %v\n", err)
	}
}
