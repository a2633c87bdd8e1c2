package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/finledger/backend/internal/ledger"
	"github.com/finledger/backend/internal/models"
	"github.com/shopspring/decimal"
)

func (suite *TestSuiteLedger) TestAddRecordUpdatesTotals() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: user.ID})
	session := ledger.Session{UserID: user.ID, AccountID: account.ID}

	record, err := suite.service.AddRecord(context.Background(), session, ledger.RecordCreate{
		Type:        "expense",
		Amount:      decimal.NewFromFloat(50),
		Description: "Groceries",
	})
	suite.Require().NoError(err)
	suite.Assert().NotZero(record.ID)
	suite.Assert().Equal(account.ID, record.AccountID)
	suite.Assert().Equal(user.ID, record.UserID)

	reloaded := suite.reloadAccount(account.ID)
	suite.Assert().True(reloaded.TotalExpense.Equal(decimal.NewFromFloat(50)), "totalExpense is %s", reloaded.TotalExpense)
	suite.Assert().True(reloaded.TotalIncome.IsZero(), "totalIncome is %s", reloaded.TotalIncome)
	suite.assertInvariant(account.ID)
}

// An expense record is added with 50, corrected to 30 and finally
// deleted. The account's totals have to track every step exactly.
func (suite *TestSuiteLedger) TestRecordLifecycle() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: user.ID})
	session := ledger.Session{UserID: user.ID, AccountID: account.ID}
	ctx := context.Background()

	record, err := suite.service.AddRecord(ctx, session, ledger.RecordCreate{
		Type:   "expense",
		Amount: decimal.NewFromFloat(50),
	})
	suite.Require().NoError(err)
	suite.Assert().True(suite.reloadAccount(account.ID).TotalExpense.Equal(decimal.NewFromFloat(50)))

	_, err = suite.service.UpdateRecord(ctx, record.ID, ledger.RecordCreate{
		Type:   "expense",
		Amount: decimal.NewFromFloat(30),
	})
	suite.Require().NoError(err)
	suite.Assert().True(suite.reloadAccount(account.ID).TotalExpense.Equal(decimal.NewFromFloat(30)))
	suite.assertInvariant(account.ID)

	err = suite.service.DeleteRecord(ctx, record.ID)
	suite.Require().NoError(err)

	reloaded := suite.reloadAccount(account.ID)
	suite.Assert().True(reloaded.TotalExpense.IsZero(), "totalExpense is %s after deletion", reloaded.TotalExpense)
	suite.assertInvariant(account.ID)
}

func (suite *TestSuiteLedger) TestUpdateRecordChangesType() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: user.ID})
	session := ledger.Session{UserID: user.ID, AccountID: account.ID}
	ctx := context.Background()

	record, err := suite.service.AddRecord(ctx, session, ledger.RecordCreate{
		Type:   "income",
		Amount: decimal.NewFromFloat(75),
	})
	suite.Require().NoError(err)

	_, err = suite.service.UpdateRecord(ctx, record.ID, ledger.RecordCreate{
		Type:   "expense",
		Amount: decimal.NewFromFloat(75),
	})
	suite.Require().NoError(err)

	reloaded := suite.reloadAccount(account.ID)
	suite.Assert().True(reloaded.TotalIncome.IsZero(), "totalIncome is %s", reloaded.TotalIncome)
	suite.Assert().True(reloaded.TotalExpense.Equal(decimal.NewFromFloat(75)), "totalExpense is %s", reloaded.TotalExpense)
	suite.assertInvariant(account.ID)
}

func (suite *TestSuiteLedger) TestConcurrentAdds() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{
		UserID:       user.ID,
		TotalIncome:  decimal.NewFromFloat(100),
		TotalExpense: decimal.NewFromFloat(40),
	})
	session := ledger.Session{UserID: user.ID, AccountID: account.ID}

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = suite.service.AddRecord(context.Background(), session, ledger.RecordCreate{
			Type:   "income",
			Amount: decimal.NewFromFloat(20),
		})
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = suite.service.AddRecord(context.Background(), session, ledger.RecordCreate{
			Type:   "expense",
			Amount: decimal.NewFromFloat(10),
		})
	}()
	wg.Wait()

	suite.Require().NoError(errs[0])
	suite.Require().NoError(errs[1])

	reloaded := suite.reloadAccount(account.ID)
	suite.Assert().True(reloaded.TotalIncome.Equal(decimal.NewFromFloat(120)), "totalIncome is %s", reloaded.TotalIncome)
	suite.Assert().True(reloaded.TotalExpense.Equal(decimal.NewFromFloat(50)), "totalExpense is %s", reloaded.TotalExpense)
}

func (suite *TestSuiteLedger) TestAddRecordValidation() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: user.ID})
	session := ledger.Session{UserID: user.ID, AccountID: account.ID}

	tests := []struct {
		name   string
		create ledger.RecordCreate
		err    error
	}{
		{"unknown type", ledger.RecordCreate{Type: "transfer", Amount: decimal.NewFromFloat(10)}, models.ErrInvalidRecordType},
		{"negative amount", ledger.RecordCreate{Type: "income", Amount: decimal.NewFromFloat(-10)}, models.ErrAmountNegative},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			_, err := suite.service.AddRecord(context.Background(), session, tt.create)
			suite.Assert().ErrorIs(err, tt.err)
		})
	}

	// Rejected payloads must not touch the account or the sinks.
	suite.assertInvariant(account.ID)
	suite.Assert().Empty(suite.search.indexed)
	suite.Assert().Empty(suite.dispatcher.records)
}

func (suite *TestSuiteLedger) TestAddRecordForeignAccount() {
	owner := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: owner.ID})
	intruder := suite.createTestUser()

	_, err := suite.service.AddRecord(context.Background(), ledger.Session{UserID: intruder.ID, AccountID: account.ID}, ledger.RecordCreate{
		Type:   "income",
		Amount: decimal.NewFromFloat(10),
	})
	suite.Assert().ErrorIs(err, ledger.ErrAccountAccessDenied)
	suite.Assert().Empty(suite.dispatcher.records)
}

func (suite *TestSuiteLedger) TestAddRecordAccountNotFound() {
	user := suite.createTestUser()

	_, err := suite.service.AddRecord(context.Background(), ledger.Session{UserID: user.ID, AccountID: 4096}, ledger.RecordCreate{
		Type:   "income",
		Amount: decimal.NewFromFloat(10),
	})
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
}

func (suite *TestSuiteLedger) TestUpdateRecordNotFound() {
	_, err := suite.service.UpdateRecord(context.Background(), 4096, ledger.RecordCreate{
		Type:   "income",
		Amount: decimal.NewFromFloat(10),
	})
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
}

func (suite *TestSuiteLedger) TestDeleteRecordNotFound() {
	err := suite.service.DeleteRecord(context.Background(), 4096)
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
}

func (suite *TestSuiteLedger) TestSinksReceiveMutations() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: user.ID})
	session := ledger.Session{UserID: user.ID, AccountID: account.ID}
	ctx := context.Background()

	record, err := suite.service.AddRecord(ctx, session, ledger.RecordCreate{
		Type:        "expense",
		Amount:      decimal.NewFromFloat(12.5),
		Description: "Coffee",
	})
	suite.Require().NoError(err)

	suite.Require().Len(suite.search.indexed, 1)
	suite.Assert().Equal(record.ID, suite.search.indexed[0].ID)
	suite.Require().Len(suite.cache.snapshots, 1)
	suite.Assert().True(suite.cache.snapshots[0].TotalExpense.Equal(decimal.NewFromFloat(12.5)))

	// Exactly one analysis request per creation.
	suite.Require().Len(suite.dispatcher.records, 1)
	suite.Assert().Equal(record.ID, suite.dispatcher.records[0].ID)

	_, err = suite.service.UpdateRecord(ctx, record.ID, ledger.RecordCreate{
		Type:   "expense",
		Amount: decimal.NewFromFloat(15),
	})
	suite.Require().NoError(err)
	suite.Require().Len(suite.search.updated, 1)
	suite.Assert().Len(suite.dispatcher.records, 1, "updates must not dispatch analysis requests")

	err = suite.service.DeleteRecord(ctx, record.ID)
	suite.Require().NoError(err)
	suite.Assert().Equal([]uint64{record.ID}, suite.search.deleted)
	suite.Assert().Len(suite.cache.snapshots, 3)
}

func (suite *TestSuiteLedger) TestSinkFailuresDoNotAbort() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: user.ID})
	session := ledger.Session{UserID: user.ID, AccountID: account.ID}

	suite.search.err = errors.New("index unavailable")
	suite.cache.err = errors.New("cache unavailable")

	record, err := suite.service.AddRecord(context.Background(), session, ledger.RecordCreate{
		Type:   "income",
		Amount: decimal.NewFromFloat(42),
	})
	suite.Require().NoError(err, "sink failures must not fail the mutation")

	// The ledger write survives and the analysis request still goes out.
	var persisted models.TransactionRecord
	suite.Require().NoError(models.DB.First(&persisted, record.ID).Error)
	suite.Assert().True(suite.reloadAccount(account.ID).TotalIncome.Equal(decimal.NewFromFloat(42)))
	suite.Require().Len(suite.dispatcher.records, 1)

	suite.Require().Len(suite.observer.failures, 2)
	suite.Assert().Equal("search", suite.observer.failures[0].Sink)
	suite.Assert().Equal("index", suite.observer.failures[0].Operation)
	suite.Assert().Equal("cache", suite.observer.failures[1].Sink)
}

func (suite *TestSuiteLedger) TestDeleteRecordsBatch() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: user.ID})
	session := ledger.Session{UserID: user.ID, AccountID: account.ID}
	ctx := context.Background()

	first, err := suite.service.AddRecord(ctx, session, ledger.RecordCreate{Type: "expense", Amount: decimal.NewFromFloat(10)})
	suite.Require().NoError(err)
	second, err := suite.service.AddRecord(ctx, session, ledger.RecordCreate{Type: "income", Amount: decimal.NewFromFloat(30)})
	suite.Require().NoError(err)
	kept, err := suite.service.AddRecord(ctx, session, ledger.RecordCreate{Type: "expense", Amount: decimal.NewFromFloat(5)})
	suite.Require().NoError(err)

	err = suite.service.DeleteRecordsBatch(ctx, session, []uint64{first.ID, second.ID})
	suite.Require().NoError(err)

	reloaded := suite.reloadAccount(account.ID)
	suite.Assert().True(reloaded.TotalIncome.IsZero(), "totalIncome is %s", reloaded.TotalIncome)
	suite.Assert().True(reloaded.TotalExpense.Equal(decimal.NewFromFloat(5)), "totalExpense is %s", reloaded.TotalExpense)
	suite.assertInvariant(account.ID)

	records, err := suite.service.RecordsByAccount(ctx, account.ID)
	suite.Require().NoError(err)
	suite.Require().Len(records, 1)
	suite.Assert().Equal(kept.ID, records[0].ID)

	// One batch deletion in the index, one cache refresh for the batch.
	suite.Require().Len(suite.search.batches, 1)
	suite.Assert().ElementsMatch([]uint64{first.ID, second.ID}, suite.search.batches[0])
	suite.Assert().Len(suite.cache.snapshots, 4)
}

func (suite *TestSuiteLedger) TestDeleteRecordsBatchForeignIDsIgnored() {
	user := suite.createTestUser()
	mine := suite.createTestAccount(models.Account{UserID: user.ID})
	other := suite.createTestAccount(models.Account{UserID: user.ID})
	ctx := context.Background()

	mineSession := ledger.Session{UserID: user.ID, AccountID: mine.ID}
	otherSession := ledger.Session{UserID: user.ID, AccountID: other.ID}

	owned, err := suite.service.AddRecord(ctx, mineSession, ledger.RecordCreate{Type: "expense", Amount: decimal.NewFromFloat(10)})
	suite.Require().NoError(err)
	foreign, err := suite.service.AddRecord(ctx, otherSession, ledger.RecordCreate{Type: "expense", Amount: decimal.NewFromFloat(20)})
	suite.Require().NoError(err)

	err = suite.service.DeleteRecordsBatch(ctx, mineSession, []uint64{owned.ID, foreign.ID})
	suite.Require().NoError(err)

	// The foreign record survives untouched.
	var persisted models.TransactionRecord
	suite.Require().NoError(models.DB.First(&persisted, foreign.ID).Error)
	suite.Assert().True(suite.reloadAccount(other.ID).TotalExpense.Equal(decimal.NewFromFloat(20)))
	suite.Assert().True(suite.reloadAccount(mine.ID).TotalExpense.IsZero())

	suite.Require().Len(suite.search.batches, 1)
	suite.Assert().Equal([]uint64{owned.ID}, suite.search.batches[0])
}

func (suite *TestSuiteLedger) TestDeleteRecordsBatchNoMatch() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: user.ID})
	session := ledger.Session{UserID: user.ID, AccountID: account.ID}

	err := suite.service.DeleteRecordsBatch(context.Background(), session, []uint64{4096, 4097})
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
	suite.Assert().Empty(suite.search.batches)
	suite.Assert().Empty(suite.cache.snapshots)
}

func (suite *TestSuiteLedger) TestRecordsWithinDays() {
	user := suite.createTestUser()
	account := suite.createTestAccount(models.Account{UserID: user.ID})
	session := ledger.Session{UserID: user.ID, AccountID: account.ID}
	ctx := context.Background()

	recent, err := suite.service.AddRecord(ctx, session, ledger.RecordCreate{
		Type:   "expense",
		Amount: decimal.NewFromFloat(10),
		Date:   time.Now().AddDate(0, 0, -2),
	})
	suite.Require().NoError(err)

	_, err = suite.service.AddRecord(ctx, session, ledger.RecordCreate{
		Type:   "expense",
		Amount: decimal.NewFromFloat(99),
		Date:   time.Now().AddDate(0, 0, -30),
	})
	suite.Require().NoError(err)

	records, err := suite.service.RecordsWithinDays(ctx, account.ID, 10)
	suite.Require().NoError(err)
	suite.Require().Len(records, 1)
	suite.Assert().Equal(recent.ID, records[0].ID)
}
