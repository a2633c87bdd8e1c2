package models

import (
	"github.com/shopspring/decimal"
)

// Effect is the signed contribution of one or more transaction records
// to an account's running totals.
//
// All balance arithmetic funnels through Effect so that every mutation
// path (add, update, delete, batch delete) adjusts the totals with the
// exact same operation instead of duplicating the bookkeeping.
type Effect struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// EffectOf returns the effect a record of the passed type and amount has
// on its account's totals.
func EffectOf(recordType RecordType, amount decimal.Decimal) Effect {
	switch recordType {
	case RecordTypeIncome:
		return Effect{Income: amount}
	case RecordTypeExpense:
		return Effect{Expense: amount}
	}

	// Unknown types never get here: they fail validation before any
	// balance is touched.
	return Effect{}
}

// Effect returns the record's own effect.
func (r TransactionRecord) Effect() Effect {
	return EffectOf(r.Type, r.Amount)
}

// Reversed returns the effect that undoes e.
func (e Effect) Reversed() Effect {
	return Effect{
		Income:  e.Income.Neg(),
		Expense: e.Expense.Neg(),
	}
}

// Add combines two effects into one aggregate effect.
func (e Effect) Add(other Effect) Effect {
	return Effect{
		Income:  e.Income.Add(other.Income),
		Expense: e.Expense.Add(other.Expense),
	}
}

// IsZero reports whether applying the effect would change anything.
func (e Effect) IsZero() bool {
	return e.Income.IsZero() && e.Expense.IsZero()
}

// ApplyEffect adjusts the account's running totals by the effect,
// leaving the bucket the effect does not touch exactly as it was.
func (a *Account) ApplyEffect(e Effect) {
	a.TotalIncome = a.TotalIncome.Add(e.Income)
	a.TotalExpense = a.TotalExpense.Add(e.Expense)
}
