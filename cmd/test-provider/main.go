package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/customerpulse/pulse/internal/config"
	"github.com/customerpulse/pulse/internal/intelligence"
	"github.com/customerpulse/pulse/internal/llm"
	"github.com/customerpulse/pulse/internal/models"
)

const sample = "We are evaluating alternatives and might terminate the contract. " +
	"I will send the updated security questionnaire by Friday."

func main() {
	fmt.Println("🔍 Customer Pulse - Text Analyzer Connectivity Test")
	fmt.Println("===================================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.LLMProvider == "" {
		log.Fatal("LLM_PROVIDER is not set")
	}

	provider, err := llm.NewProvider(llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
	})
	if err != nil {
		log.Fatalf("Failed to build provider: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fmt.Printf("\n🔸 Testing %s... ", provider.Name())
	start := time.Now()
	text, err := intelligence.RequestAnalysis(ctx, provider, "Connectivity Test", models.Communication{
		Type:        models.CommunicationEmail,
		Content:     sample,
		ContentDate: time.Now(),
		Sender:      "test@example.com",
	})
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		return
	}
	fmt.Printf("✅ SUCCESS (%s)\n", time.Since(start).Round(time.Millisecond))

	analysis, err := intelligence.ParseAnalysis(text)
	if err != nil {
		fmt.Printf("   ⚠️  Reply could not be parsed: %v\n", err)
		fmt.Println(strings.Repeat("-", 40))
		fmt.Println(text)
		return
	}

	fmt.Printf("   💭 Sentiment: %s\n", analysis.Sentiment)
	fmt.Printf("   📝 Summary:   %s\n", analysis.Summary)
	fmt.Printf("   🚩 Signals:   %s\n", strings.Join(analysis.Signals, ", "))
	fmt.Printf("   📌 Commitments: %d\n", len(analysis.Commitments))

	fmt.Println("\n✅ Text analyzer connectivity test completed!")
}
