package models_test

import (
	"github.com/finledger/backend/internal/models"
)

func (suite *TestSuiteStandard) TestAccountTrimWhitespace() {
	user := suite.createTestUser(models.User{})
	account := suite.createTestAccount(models.Account{UserID: user.ID, Name: " Daily budget "})

	suite.Assert().Equal("Daily budget", account.Name)
}

func (suite *TestSuiteStandard) TestAccountNameRequired() {
	user := suite.createTestUser(models.User{})

	err := models.DB.Create(&models.Account{UserID: user.ID, Name: "   "}).Error
	suite.Assert().ErrorIs(err, models.ErrAccountNameRequired)
}

func (suite *TestSuiteStandard) TestAccountRequiresUser() {
	err := models.DB.Create(&models.Account{UserID: 4096, Name: "orphan"}).Error
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
}

func (suite *TestSuiteStandard) TestUserAccounts() {
	user := suite.createTestUser(models.User{})
	account := suite.createTestAccount(models.Account{UserID: user.ID})
	_ = suite.createTestAccount(models.Account{UserID: suite.createTestUser(models.User{}).ID})

	accounts, err := user.Accounts(models.DB)
	suite.Assert().NoError(err)
	suite.Assert().Len(accounts, 1)
	suite.Assert().Equal(account.ID, accounts[0].ID)
}
