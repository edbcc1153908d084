package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/customerpulse/pulse/internal/alerts"
	"github.com/customerpulse/pulse/internal/health"
	"github.com/customerpulse/pulse/internal/intelligence"
	"github.com/customerpulse/pulse/internal/llm"
	"github.com/customerpulse/pulse/internal/lock"
	"github.com/customerpulse/pulse/internal/models"
	"github.com/customerpulse/pulse/internal/storage"
	"github.com/customerpulse/pulse/internal/store"
)

// TerminalNotifier prints the run digest instead of sending it
type TerminalNotifier struct{}

func (t *TerminalNotifier) SendReport(ctx context.Context, report *models.RunReport) error {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("📊 DAILY HEALTH RUN")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("🕒 Started:  %s (%s)\n", report.StartedAt.Format("2006-01-02 15:04:05 UTC"), report.Duration)
	fmt.Printf("📈 Accounts: %d processed, %d failed\n", report.AccountsProcessed, report.AccountsFailed)

	if len(report.Alerts) > 0 {
		fmt.Println("\n🚨 New alerts:")
		for i, alert := range report.Alerts {
			fmt.Printf("   %d. [%s] %s\n", i+1, alert.Category, alert.Title)
			fmt.Printf("      %s\n", alert.Message)
		}
	}
	for _, name := range report.FailedAccounts {
		fmt.Printf("   ❌ %s\n", name)
	}
	return nil
}

type demoAccount struct {
	account  models.Account
	contacts int
	contract *models.Contract
	messages []string
}

func main() {
	fmt.Println("🧪 Customer Pulse - Local Demo")
	fmt.Println("==============================")

	logrus.SetLevel(logrus.WarnLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	st := store.NewMemory()
	analyzers := llm.Fixed(llm.NewMockProvider())
	calculator := health.NewCalculator(st, health.NewGenerator(analyzers))
	processor := intelligence.NewService(st, analyzers, calculator)

	now := time.Now().UTC()
	for _, demo := range demoAccounts(now) {
		account := demo.account
		if err := st.CreateAccount(ctx, &account); err != nil {
			log.Fatalf("Failed to create account %s: %v", account.Name, err)
		}
		for i := 0; i < demo.contacts; i++ {
			contact := models.Contact{AccountID: account.ID, Name: fmt.Sprintf("Contact %d", i+1)}
			if err := st.CreateContact(ctx, &contact); err != nil {
				log.Fatalf("Failed to create contact: %v", err)
			}
		}
		if demo.contract != nil {
			contract := *demo.contract
			contract.AccountID = account.ID
			if err := st.CreateContract(ctx, &contract); err != nil {
				log.Fatalf("Failed to create contract: %v", err)
			}
		}

		fmt.Printf("\n🔸 %s (%s)\n", account.Name, account.Tier)
		for _, text := range demo.messages {
			outcome, err := processor.ProcessCommunication(ctx, models.Communication{
				AccountID: account.ID,
				Type:      models.CommunicationEmail,
				Content:   text,
			})
			if err != nil {
				fmt.Printf("   ❌ Error: %v\n", err)
				continue
			}
			fmt.Printf("   📝 %q\n", text)
			fmt.Printf("      severity=%s deep=%t reminders=%d", outcome.Scan.KeywordSeverity, outcome.DeepAnalyzed, len(outcome.Reminders))
			if outcome.HealthScore != nil {
				fmt.Printf(" score=%d (%s)", outcome.HealthScore.OverallScore, outcome.HealthScore.OverallStatus)
			}
			fmt.Println()
		}
	}

	archive := storage.NewDirStorage("demo_output")
	service := alerts.NewService(st, calculator, alerts.NewGenerator(), lock.NewLocal(), alerts.Options{
		Workers:  2,
		Storage:  archive,
		Notifier: &TerminalNotifier{},
	})

	fmt.Println("\n🔍 Running daily job...")
	if _, err := service.RunDailyJob(ctx, alerts.RunManual); err != nil {
		log.Fatalf("Daily job failed: %v", err)
	}

	fmt.Println("\n🔁 Running again to show deduplication...")
	report, err := service.RunDailyJob(ctx, alerts.RunManual)
	if err != nil {
		log.Fatalf("Daily job failed: %v", err)
	}
	fmt.Printf("   ✅ %d new alerts on the second run\n", len(report.Alerts))

	names, err := archive.List(ctx, storage.ReportPrefix)
	if err == nil && len(names) > 0 {
		fmt.Printf("\n💾 Run reports saved under demo_output/ (%d files)\n", len(names))
	}

	fmt.Println("\n✅ Demo completed!")
}

func demoAccounts(now time.Time) []demoAccount {
	ato := now.AddDate(0, 0, 45)
	return []demoAccount{
		{
			account:  models.Account{Name: "Northwind Health", Tier: "enterprise", CheckInIntervalDays: 14, IsActive: true},
			contacts: 1,
			contract: &models.Contract{
				Name:          "Northwind MSA",
				ContractType:  "saas_subscription",
				Status:        "active",
				EffectiveDate: now.AddDate(-1, 0, 0),
				EndDate:       now.AddDate(0, 0, 21),
				ARR:           180000,
			},
			messages: []string{
				"We are evaluating alternatives and might terminate the contract.",
				"The outage last week was frustrating and the pricing is too expensive.",
			},
		},
		{
			account:  models.Account{Name: "Contoso Federal", Tier: "government", CheckInIntervalDays: 30, IsActive: true},
			contacts: 4,
			contract: &models.Contract{
				Name:            "Contoso Agency License",
				ContractType:    "enterprise_license",
				Status:          "active",
				EffectiveDate:   now.AddDate(-2, 0, 0),
				EndDate:         now.AddDate(1, 0, 0),
				ARR:             420000,
				FedRAMPRequired: true,
				FISMALevel:      "moderate",
				ATOStatus:       "active",
				ATOExpiryDate:   &ato,
			},
			messages: []string{
				"Thanks, the team is really happy with the rollout and wants to expand to two more bureaus.",
			},
		},
		{
			account:  models.Account{Name: "Fabrikam Retail", Tier: "growth", CheckInIntervalDays: 14, IsActive: true},
			contacts: 2,
			messages: []string{
				"Quick note to confirm the meeting on Thursday.",
			},
		},
	}
}
