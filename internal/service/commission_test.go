package service

import (
	"testing"

	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/models"

	"github.com/shopspring/decimal"
)

func TestComputeCommissionPercentage(t *testing.T) {
	partner := &models.Partner{
		CommissionType: constants.CommissionTypePercentage,
		CommissionRate: models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
	}
	quote := ComputeCommission(partner, constants.EventTypePurchase, models.NewMoneyFromDecimal(decimal.RequireFromString("100.00")))
	if quote.Amount.String() != "20.00" {
		t.Fatalf("expected commission 20.00, got %s", quote.Amount.String())
	}
	if quote.Type != constants.CommissionTypePercentage {
		t.Fatalf("expected percentage type, got %s", quote.Type)
	}
	if quote.Rate.String() != "20.00" {
		t.Fatalf("expected rate snapshot 20.00, got %s", quote.Rate.String())
	}
}

func TestComputeCommissionPercentageLargeAmount(t *testing.T) {
	partner := &models.Partner{
		CommissionType: constants.CommissionTypePercentage,
		CommissionRate: models.NewMoneyFromDecimal(decimal.NewFromInt(25)),
	}
	quote := ComputeCommission(partner, constants.EventTypeSubscription, models.NewMoneyFromDecimal(decimal.NewFromInt(4000)))
	if quote.Amount.String() != "1000.00" {
		t.Fatalf("expected commission 1000.00, got %s", quote.Amount.String())
	}
}

func TestComputeCommissionRounding(t *testing.T) {
	partner := &models.Partner{
		CommissionType: constants.CommissionTypePercentage,
		CommissionRate: models.NewMoneyFromDecimal(decimal.RequireFromString("33.33")),
	}
	quote := ComputeCommission(partner, constants.EventTypePurchase, models.NewMoneyFromDecimal(decimal.RequireFromString("10.00")))
	if quote.Amount.String() != "3.33" {
		t.Fatalf("expected commission 3.33, got %s", quote.Amount.String())
	}
}

func TestComputeCommissionFixed(t *testing.T) {
	partner := &models.Partner{
		CommissionType: constants.CommissionTypeFixed,
		FixedAmount:    models.NewMoneyFromDecimal(decimal.RequireFromString("15.00")),
	}
	quote := ComputeCommission(partner, constants.EventTypeSignup, models.NewMoneyFromDecimal(decimal.NewFromInt(999)))
	if quote.Amount.String() != "15.00" {
		t.Fatalf("expected fixed commission 15.00, got %s", quote.Amount.String())
	}
	if quote.Type != constants.CommissionTypeFixed {
		t.Fatalf("expected fixed type, got %s", quote.Type)
	}
	if quote.Rate.String() != "15.00" {
		t.Fatalf("expected fixed amount snapshot 15.00, got %s", quote.Rate.String())
	}
}

func TestComputeCommissionNonCommissionableEvent(t *testing.T) {
	partner := &models.Partner{
		CommissionType: constants.CommissionTypePercentage,
		CommissionRate: models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
	}
	quote := ComputeCommission(partner, constants.EventTypeTrialStart, models.NewMoneyFromDecimal(decimal.NewFromInt(100)))
	if !quote.Amount.IsZero() {
		t.Fatalf("expected zero commission for trial_start, got %s", quote.Amount.String())
	}
}

func TestComputeCommissionNilPartner(t *testing.T) {
	quote := ComputeCommission(nil, constants.EventTypePurchase, models.NewMoneyFromDecimal(decimal.NewFromInt(100)))
	if !quote.Amount.IsZero() {
		t.Fatalf("expected zero commission, got %s", quote.Amount.String())
	}
}
