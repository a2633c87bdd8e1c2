// Package ledger implements the mutation orchestrator: every change to a
// transaction record is written to the authoritative store in one
// transaction, then propagated to the search index and the account
// cache, and finally handed to the analysis dispatcher.
//
// The ledger store is the single source of truth. Failures downstream of
// its commit degrade the derived views, never the ledger itself.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finledger/backend/internal/metrics"
	"github.com/finledger/backend/internal/models"
)

var ErrAccountAccessDenied = errors.New("the account does not belong to the acting user")

// Session identifies the acting user and their active account. Resolving
// a session from an authentication token is the transport layer's job.
type Session struct {
	UserID    uint64
	AccountID uint64
}

// RecordCreate is the payload for creating or updating a transaction
// record.
type RecordCreate struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
}

func (c RecordCreate) validate() (models.RecordType, error) {
	recordType, err := models.ParseRecordType(c.Type)
	if err != nil {
		return "", err
	}

	if c.Amount.IsNegative() {
		return "", models.ErrAmountNegative
	}

	return recordType, nil
}

// SearchSink mirrors record mutations into the search index.
type SearchSink interface {
	Index(record models.TransactionRecord) error
	Update(record models.TransactionRecord) error
	Delete(id uint64) error
	DeleteBatch(ids []uint64) error
}

// CacheSink mirrors the post-mutation account snapshot into the cache.
type CacheSink interface {
	Refresh(ctx context.Context, account models.Account) error
}

// AnalysisDispatcher enqueues a record for asynchronous analysis. It
// must not block beyond enqueue latency and must never return control
// flow to the mutation path.
type AnalysisDispatcher interface {
	Dispatch(ctx context.Context, record models.TransactionRecord)
}

// Service orchestrates record mutations across the ledger store and its
// sinks.
type Service struct {
	db         *gorm.DB
	search     SearchSink
	cache      CacheSink
	dispatcher AnalysisDispatcher
	observer   metrics.Observer
	log        zerolog.Logger
}

func NewService(db *gorm.DB, search SearchSink, cache CacheSink, dispatcher AnalysisDispatcher, observer metrics.Observer, log zerolog.Logger) *Service {
	return &Service{
		db:         db,
		search:     search,
		cache:      cache,
		dispatcher: dispatcher,
		observer:   observer,
		log:        log,
	}
}

// AddRecord validates the payload, applies its effect to the session's
// account and persists the new record, all in one transaction. After the
// commit the search index and the cache are refreshed and an analysis
// request is dispatched; none of these can fail the mutation.
func (s *Service) AddRecord(ctx context.Context, session Session, create RecordCreate) (models.TransactionRecord, error) {
	recordType, err := create.validate()
	if err != nil {
		return models.TransactionRecord{}, err
	}

	var record models.TransactionRecord
	var account models.Account

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err = s.accountForSession(tx, session)
		if err != nil {
			return err
		}

		account.ApplyEffect(models.EffectOf(recordType, create.Amount))
		err = tx.Model(&account).Select("TotalIncome", "TotalExpense").Updates(account).Error
		if err != nil {
			return err
		}

		record = models.TransactionRecord{
			AccountID:   account.ID,
			UserID:      session.UserID,
			Type:        recordType,
			Amount:      create.Amount,
			Date:        create.Date,
			Description: create.Description,
		}

		return tx.Create(&record).Error
	})
	if err != nil {
		return models.TransactionRecord{}, err
	}

	// The ledger write is committed, everything below is best effort.
	s.observeSink(ctx, "search", "index", s.search.Index(record))
	s.observeSink(ctx, "cache", "refresh", s.cache.Refresh(ctx, account))

	s.dispatcher.Dispatch(ctx, record)

	return record, nil
}

// UpdateRecord reverses the existing record's effect, applies the new
// payload's effect and overwrites the record's fields. The reversal is
// computed from the pre-mutation record state: reversing after the
// fields are overwritten would corrupt the delta.
func (s *Service) UpdateRecord(ctx context.Context, id uint64, create RecordCreate) (models.TransactionRecord, error) {
	recordType, err := create.validate()
	if err != nil {
		return models.TransactionRecord{}, err
	}

	var record models.TransactionRecord
	var account models.Account

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&record, id).Error
		if err != nil {
			return err
		}

		err = tx.First(&account, record.AccountID).Error
		if err != nil {
			return err
		}

		oldEffect := record.Effect()
		newEffect := models.EffectOf(recordType, create.Amount)

		account.ApplyEffect(oldEffect.Reversed())
		account.ApplyEffect(newEffect)
		err = tx.Model(&account).Select("TotalIncome", "TotalExpense").Updates(account).Error
		if err != nil {
			return err
		}

		record.Type = recordType
		record.Amount = create.Amount
		record.Description = create.Description
		if !create.Date.IsZero() {
			record.Date = create.Date
		}

		return tx.Save(&record).Error
	})
	if err != nil {
		return models.TransactionRecord{}, err
	}

	s.observeSink(ctx, "search", "update", s.search.Update(record))
	s.observeSink(ctx, "cache", "refresh", s.cache.Refresh(ctx, account))

	return record, nil
}

// DeleteRecord reverses the record's effect and removes it.
func (s *Service) DeleteRecord(ctx context.Context, id uint64) error {
	var record models.TransactionRecord
	var account models.Account

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&record, id).Error
		if err != nil {
			return err
		}

		err = tx.First(&account, record.AccountID).Error
		if err != nil {
			return err
		}

		account.ApplyEffect(record.Effect().Reversed())
		err = tx.Model(&account).Select("TotalIncome", "TotalExpense").Updates(account).Error
		if err != nil {
			return err
		}

		return tx.Delete(&record).Error
	})
	if err != nil {
		return err
	}

	s.observeSink(ctx, "search", "delete", s.search.Delete(id))
	s.observeSink(ctx, "cache", "refresh", s.cache.Refresh(ctx, account))

	return nil
}

// DeleteRecordsBatch removes the subset of the passed IDs that belongs
// to the session's account. IDs owned by other accounts are silently
// ignored. When no record of the account matches, the whole operation
// fails as not found.
//
// The summed effect of all matched records is reversed in one aggregate
// update and the cache is refreshed once with the final state, not once
// per record.
func (s *Service) DeleteRecordsBatch(ctx context.Context, session Session, ids []uint64) error {
	var account models.Account
	var matched []uint64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		account, err = s.accountForSession(tx, session)
		if err != nil {
			return err
		}

		records, err := models.RecordsByIDsAndAccount(tx, ids, account.ID)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			return fmt.Errorf("%w transaction record matching your query", models.ErrResourceNotFound)
		}

		var effect models.Effect
		matched = make([]uint64, 0, len(records))
		for _, record := range records {
			effect = effect.Add(record.Effect())
			matched = append(matched, record.ID)
		}

		account.ApplyEffect(effect.Reversed())
		err = tx.Model(&account).Select("TotalIncome", "TotalExpense").Updates(account).Error
		if err != nil {
			return err
		}

		return tx.Where("id IN ?", matched).Delete(&models.TransactionRecord{}).Error
	})
	if err != nil {
		return err
	}

	s.observeSink(ctx, "search", "deleteBatch", s.search.DeleteBatch(matched))
	s.observeSink(ctx, "cache", "refresh", s.cache.Refresh(ctx, account))

	return nil
}

// RecordsWithinDays returns the account's records within the trailing
// window. It serves both the client-facing query and the analysis
// consumer's context read.
func (s *Service) RecordsWithinDays(ctx context.Context, accountID uint64, days int) ([]models.TransactionRecord, error) {
	return models.RecordsWithinDays(s.db.WithContext(ctx), accountID, days)
}

// RecordsByAccount returns all records of an account.
func (s *Service) RecordsByAccount(ctx context.Context, accountID uint64) ([]models.TransactionRecord, error) {
	account := models.Account{Model: models.Model{ID: accountID}}
	return account.Records(s.db.WithContext(ctx))
}

// RecordsByAccountAndType returns all records of one type for an account.
func (s *Service) RecordsByAccountAndType(ctx context.Context, accountID uint64, recordType models.RecordType) ([]models.TransactionRecord, error) {
	return models.RecordsByAccountAndType(s.db.WithContext(ctx), accountID, recordType)
}

// accountForSession loads the session's account and verifies ownership.
func (s *Service) accountForSession(tx *gorm.DB, session Session) (models.Account, error) {
	var account models.Account
	err := tx.First(&account, session.AccountID).Error
	if err != nil {
		return models.Account{}, err
	}

	if account.UserID != session.UserID {
		return models.Account{}, ErrAccountAccessDenied
	}

	return account, nil
}

// observeSink routes a sink failure to the observer. The failure never
// aborts the committed mutation and is never retried.
func (s *Service) observeSink(ctx context.Context, sink, operation string, err error) {
	if err == nil {
		return
	}

	s.observer.SinkFailed(ctx, metrics.SinkFailure{
		Sink:      sink,
		Operation: operation,
		Err:       err,
	})
}
