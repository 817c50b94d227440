package domain

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

type AccountType string

const (
	AccountTypeLiability AccountType = "liability"
	AccountTypeACH       AccountType = "ach"
)

type Liability struct {
	CreditLimitCents       int64     `json:"credit_limit_cents"`
	AvailableCreditCents   int64     `json:"available_credit_cents"`
	MinimumPaymentCents    int64     `json:"minimum_payment_cents"`
	StatementBalanceCents  int64     `json:"statement_balance_cents"`
	LastPaymentAmountCents int64     `json:"last_payment_amount_cents"`
	APR                    float64   `json:"apr"`
	LastPaymentDate        time.Time `json:"last_payment_date"`
	NextPaymentDueDate     time.Time `json:"next_payment_due_date"`
}

type Account struct {
	ID             string
	EntityID       string
	Type           AccountType
	Status         string
	Name           string
	Brand          string
	LastFour       string
	BalanceCents   int64
	ExpMonth       int
	ExpYear        int
	Liability      *Liability
	BankName       string
	RoutingNumber  string
	AccountSubtype string
	Simulated      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type brandConfig struct {
	brand    string
	name     string
	lastFour string
}

var brandConfigs = map[string]brandConfig{
	"visa":       {brand: "visa", name: "Chase Sapphire Preferred", lastFour: "4242"},
	"mastercard": {brand: "mastercard", name: "Capital One Venture", lastFour: "5555"},
	"amex":       {brand: "amex", name: "American Express Gold", lastFour: "1005"},
	"discover":   {brand: "discover", name: "Discover it Cash Back", lastFour: "1117"},
}

// CardBrands lists the brands SimulateCreditCard understands, in the order
// connect-multiple uses them.
var CardBrands = []string{"visa", "mastercard", "amex", "discover"}

// SimulateCreditCard fabricates a liability account with plausible balances,
// standing in for a Method Connect card link in the dev environment.
func SimulateCreditCard(entityID, brand string) Account {
	cfg, ok := brandConfigs[brand]
	if !ok {
		cfg = brandConfigs["visa"]
	}

	now := time.Now().UTC()
	balance := int64(rand.Intn(450_000) + 50_000)
	creditLimit := balance + int64(rand.Intn(900_000)+100_000)
	minPayment := balance * 2 / 100
	if minPayment < 2_500 {
		minPayment = 2_500
	}

	return Account{
		ID:           "acc_cc_" + uuid.NewString()[:8],
		EntityID:     entityID,
		Type:         AccountTypeLiability,
		Status:       "active",
		Name:         cfg.name,
		Brand:        cfg.brand,
		LastFour:     cfg.lastFour,
		BalanceCents: balance,
		ExpMonth:     rand.Intn(12) + 1,
		ExpYear:      now.Year() + rand.Intn(5) + 1,
		Liability: &Liability{
			CreditLimitCents:       creditLimit,
			AvailableCreditCents:   creditLimit - balance,
			MinimumPaymentCents:    minPayment,
			StatementBalanceCents:  balance,
			LastPaymentAmountCents: int64(rand.Intn(int(minPayment))) + 1,
			APR:                    15.99 + rand.Float64()*14,
			LastPaymentDate:        now.AddDate(0, 0, -(rand.Intn(25) + 5)),
			NextPaymentDueDate:     now.AddDate(0, 0, rand.Intn(30)+15),
		},
		Simulated: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SimulateBankAccount fabricates an ACH account (checking or savings).
func SimulateBankAccount(entityID, subtype string) Account {
	if subtype != "savings" {
		subtype = "checking"
	}
	now := time.Now().UTC()
	return Account{
		ID:             "acc_bank_" + uuid.NewString()[:8],
		EntityID:       entityID,
		Type:           AccountTypeACH,
		Status:         "active",
		Name:           "Simulated " + subtype + " account",
		LastFour:       uuid.NewString()[:4],
		BalanceCents:   500_000,
		BankName:       "Chase Bank (Simulated)",
		RoutingNumber:  "021000021",
		AccountSubtype: subtype,
		Simulated:      true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
