package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RecordType is the closed set of transaction record types.
type RecordType string

const (
	RecordTypeIncome  RecordType = "income"
	RecordTypeExpense RecordType = "expense"
)

// ParseRecordType parses a record type case-insensitively.
//
// Unknown values are a validation error. The type is a closed
// enumeration so that a typo can never silently bypass the balance
// bookkeeping.
func ParseRecordType(s string) (RecordType, error) {
	switch RecordType(strings.ToLower(strings.TrimSpace(s))) {
	case RecordTypeIncome:
		return RecordTypeIncome, nil
	case RecordTypeExpense:
		return RecordTypeExpense, nil
	}

	return "", ErrInvalidRecordType
}

// TransactionRecord represents a single income or expense entry.
// It belongs to exactly one account. The UserID is denormalized from
// the account for fast per-user filtering.
type TransactionRecord struct {
	Model
	Account     Account `json:"-"`
	AccountID   uint64  `gorm:"index"`
	UserID      uint64  `gorm:"index"`
	Type        RecordType
	Amount      decimal.Decimal `gorm:"type:DECIMAL(20,8)"`
	Date        time.Time
	Description string
}

// AfterFind updates the timestamps to use UTC as timezone, not +0000.
func (r *TransactionRecord) AfterFind(tx *gorm.DB) (err error) {
	_ = r.Model.AfterFind(tx)
	r.Date = r.Date.In(time.UTC)
	return nil
}

// BeforeSave sets the timezone for the Date to UTC and verifies the
// type and amount.
func (r *TransactionRecord) BeforeSave(_ *gorm.DB) (err error) {
	if r.Date.IsZero() {
		r.Date = time.Now().In(time.UTC)
	} else {
		r.Date = r.Date.In(time.UTC)
	}

	r.Description = strings.TrimSpace(r.Description)

	if _, err := ParseRecordType(string(r.Type)); err != nil {
		return err
	}

	if r.Amount.IsNegative() {
		return ErrAmountNegative
	}

	return nil
}

func (r *TransactionRecord) BeforeCreate(tx *gorm.DB) error {
	toSave := tx.Statement.Dest.(*TransactionRecord)
	return r.checkIntegrity(tx, *toSave)
}

// checkIntegrity verifies references to other resources
func (r *TransactionRecord) checkIntegrity(tx *gorm.DB, toSave TransactionRecord) error {
	return tx.First(&Account{}, toSave.AccountID).Error
}

// RecordsByAccountAndType returns all records of one type for an account.
func RecordsByAccountAndType(db *gorm.DB, accountID uint64, recordType RecordType) ([]TransactionRecord, error) {
	var records []TransactionRecord
	err := db.
		Where(&TransactionRecord{AccountID: accountID, Type: recordType}).
		Order("datetime(transaction_records.date) DESC").
		Find(&records).Error
	return records, err
}

// RecordsByIDsAndAccount returns the subset of the passed IDs that
// belongs to the account. IDs owned by other accounts are silently
// ignored, this is the tenant isolation boundary for batch operations.
func RecordsByIDsAndAccount(db *gorm.DB, ids []uint64, accountID uint64) ([]TransactionRecord, error) {
	var records []TransactionRecord
	err := db.
		Where("transaction_records.id IN ?", ids).
		Where(&TransactionRecord{AccountID: accountID}).
		Find(&records).Error
	return records, err
}

// RecordsWithinDays returns all records of an account with a date within
// the trailing window of the passed number of days.
func RecordsWithinDays(db *gorm.DB, accountID uint64, days int) ([]TransactionRecord, error) {
	cutoff := time.Now().In(time.UTC).AddDate(0, 0, -days)

	var records []TransactionRecord
	err := db.
		Where(&TransactionRecord{AccountID: accountID}).
		Where("datetime(transaction_records.date) >= datetime(?)", cutoff).
		Order("datetime(transaction_records.date) DESC").
		Find(&records).Error
	return records, err
}
