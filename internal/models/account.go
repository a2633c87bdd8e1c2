package models

import (
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account represents a ledger account accumulating income and expense
// totals for one user.
//
// TotalIncome and TotalExpense are running sums derived from the
// account's transaction records. They are only ever mutated through an
// Effect, never set directly, so that they stay equal to the sum of all
// non-deleted records of the matching type.
type Account struct {
	Model
	User         User   `json:"-"`
	UserID       uint64 `gorm:"uniqueIndex:account_name_user_id"`
	Name         string `gorm:"uniqueIndex:account_name_user_id"`
	TotalIncome  decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	TotalExpense decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
}

// BeforeSave trims whitespace and verifies the account has a name.
func (a *Account) BeforeSave(_ *gorm.DB) error {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return ErrAccountNameRequired
	}

	return nil
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	toSave := tx.Statement.Dest.(*Account)
	return a.checkIntegrity(tx, *toSave)
}

// checkIntegrity verifies references to other resources
func (a *Account) checkIntegrity(tx *gorm.DB, toSave Account) error {
	return tx.First(&User{}, toSave.UserID).Error
}

// Records returns all transaction records for this account.
func (a Account) Records(db *gorm.DB) ([]TransactionRecord, error) {
	var records []TransactionRecord
	err := db.
		Where(&TransactionRecord{AccountID: a.ID}).
		Order("datetime(transaction_records.date) DESC").
		Find(&records).Error
	return records, err
}
