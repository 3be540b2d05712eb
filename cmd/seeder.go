package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/frahmantamala/secure-payments/internal/parameters"
	"github.com/frahmantamala/secure-payments/internal/payment"
	"github.com/spf13/cobra"
)

const (
	defaultMaskPattern = "****-####"
	defaultMaxAmount   = "1000000"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed runtime parameters and sample payments for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := initializeDependencies()
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.Close()

		ctx := context.Background()

		if clearData {
			if deps.Gorm == nil {
				log.Fatalf("--clear requires the postgres driver")
			}
			if err := deps.Gorm.Exec("DELETE FROM payment_status_index").Error; err != nil {
				log.Fatalf("failed to clear payment index: %v", err)
			}
			if err := deps.Gorm.Exec("DELETE FROM payments").Error; err != nil {
				log.Fatalf("failed to clear payments: %v", err)
			}
			fmt.Println("Cleared existing payments")
		}

		if deps.Redis != nil && deps.Config.Parameters.Source == "redis" {
			source := parameters.NewRedisSource(deps.Redis)
			defaults := map[string]string{
				deps.Config.Parameters.MaskPatternName(): defaultMaskPattern,
				deps.Config.Parameters.MaxAmountName():   defaultMaxAmount,
			}
			for name, value := range defaults {
				_, err := source.Get(ctx, name)
				switch {
				case err == nil:
					fmt.Printf("parameter %s already set; leaving it\n", name)
				case errors.Is(err, parameters.ErrNotFound):
					if err := source.Set(ctx, name, value); err != nil {
						log.Fatalf("failed to seed parameter %s: %v", name, err)
					}
					fmt.Printf("Seeded parameter %s=%s\n", name, value)
				default:
					log.Fatalf("failed to read parameter %s: %v", name, err)
				}
			}
			deps.Params.Invalidate()
		}

		samples := []struct {
			Amount    int64
			Reference string
			Approve   bool
		}{
			{Amount: 125000, Reference: "4111111111111111"},
			{Amount: 49900, Reference: "5500005555555559", Approve: true},
			{Amount: 780000},
			{Amount: 15000, Reference: "ACCT-0099887766"},
		}

		for _, s := range samples {
			dto := payment.CreatePaymentDTO{Amount: s.Amount}
			if s.Reference != "" {
				ref := s.Reference
				dto.Reference = &ref
			}

			created, err := deps.Service.CreatePayment(ctx, dto)
			if err != nil {
				log.Fatalf("failed to seed payment of %d: %v", s.Amount, err)
			}
			fmt.Printf("Seeded payment %s amount=%d\n", created.ID, created.Amount)

			if s.Approve {
				if _, err := deps.Service.ApprovePayment(ctx, created.ID); err != nil {
					log.Fatalf("failed to approve seeded payment %s: %v", created.ID, err)
				}
				fmt.Printf("Approved payment %s\n", created.ID)
			}
		}

		fmt.Println("Payments seeded successfully")
	},
}
