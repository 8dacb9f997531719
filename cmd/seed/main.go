package main

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/contadigital/backend/internal/database"
	"github.com/contadigital/backend/internal/models"
)

// Seeds two accounts and two past-due scheduled withdrawals so a worker
// run exercises both dispatcher outcomes: one withdrawal is covered by
// its balance, the other is not.
func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	db := database.InitDatabase()
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	now := time.Now()
	pastDue := now.Add(-2 * time.Minute)

	accounts := []struct {
		name    string
		balance string
		pixKey  string
	}{
		{"Conta Principal", "1000.00", "cliente.ok@exemplo.com"},
		{"Conta Secundária", "50.00", "cliente.sem.saldo@exemplo.com"},
	}

	for _, acc := range accounts {
		accountID := uuid.NewString()

		if _, err := db.Exec(`
			INSERT INTO accounts (id, name, balance, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)`,
			accountID, acc.name, acc.balance, now); err != nil {
			log.Fatalf("Failed to seed account %s: %v", acc.name, err)
		}
		log.Printf("Account created: %s | id=%s | balance=%s", acc.name, accountID, acc.balance)

		withdrawalID := uuid.NewString()
		if _, err := db.Exec(`
			INSERT INTO account_withdrawals
				(id, account_id, method, amount, scheduled, scheduled_for,
				 done, error, error_reason, processing, processing_started_at, processed_at,
				 created_at, updated_at)
			VALUES ($1, $2, $3, $4, TRUE, $5, FALSE, FALSE, NULL, FALSE, NULL, NULL, $6, $6)`,
			withdrawalID, accountID, models.MethodPix, "200.00", pastDue, now); err != nil {
			log.Fatalf("Failed to seed withdrawal: %v", err)
		}
		if _, err := db.Exec(`
			INSERT INTO account_withdrawal_pix (account_withdrawal_id, type, key, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)`,
			withdrawalID, models.DestinationTypeEmail, acc.pixKey, now); err != nil {
			log.Fatalf("Failed to seed destination: %v", err)
		}
		log.Printf("Scheduled withdrawal created: id=%s | account=%s | amount=200.00 | due=%s",
			withdrawalID, accountID, pastDue.Format(models.ScheduleLayout))
	}

	log.Println("Seed completed: run the worker to process both withdrawals (one succeeds, one fails with insufficient_funds)")
}
