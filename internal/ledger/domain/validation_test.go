package domain

import (
	"errors"
	"testing"
)

func TestValidateBalanced(t *testing.T) {
	lines := []LedgerEntryLine{
		{AccountID: 1, Direction: LedgerEntryDirectionDebit, Amount: 15900},
		{AccountID: 2, Direction: LedgerEntryDirectionCredit, Amount: 11250},
		{AccountID: 3, Direction: LedgerEntryDirectionCredit, Amount: 3750},
		{AccountID: 4, Direction: LedgerEntryDirectionCredit, Amount: 900},
	}
	if err := ValidateBalanced(lines); err != nil {
		t.Fatalf("expected balanced entry, got %v", err)
	}
}

func TestValidateBalancedRejectsUnbalanced(t *testing.T) {
	lines := []LedgerEntryLine{
		{AccountID: 1, Direction: LedgerEntryDirectionDebit, Amount: 100},
		{AccountID: 2, Direction: LedgerEntryDirectionCredit, Amount: 99},
	}
	if err := ValidateBalanced(lines); !errors.Is(err, ErrUnbalancedEntry) {
		t.Fatalf("expected unbalanced error, got %v", err)
	}
}

func TestValidateBalancedRejectsSingleLine(t *testing.T) {
	lines := []LedgerEntryLine{
		{AccountID: 1, Direction: LedgerEntryDirectionDebit, Amount: 100},
	}
	if err := ValidateBalanced(lines); !errors.Is(err, ErrInvalidEntryLines) {
		t.Fatalf("expected invalid lines error, got %v", err)
	}
}

func TestValidateBalancedRejectsNegativeAmount(t *testing.T) {
	lines := []LedgerEntryLine{
		{AccountID: 1, Direction: LedgerEntryDirectionDebit, Amount: -1},
		{AccountID: 2, Direction: LedgerEntryDirectionCredit, Amount: -1},
	}
	if err := ValidateBalanced(lines); !errors.Is(err, ErrInvalidLineAmount) {
		t.Fatalf("expected invalid amount error, got %v", err)
	}
}

func TestValidateBalancedRejectsUnknownDirection(t *testing.T) {
	lines := []LedgerEntryLine{
		{AccountID: 1, Direction: "sideways", Amount: 100},
		{AccountID: 2, Direction: LedgerEntryDirectionCredit, Amount: 100},
	}
	if err := ValidateBalanced(lines); !errors.Is(err, ErrInvalidLineDirection) {
		t.Fatalf("expected invalid direction error, got %v", err)
	}
}
