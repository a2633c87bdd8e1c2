package models

import (
	"errors"
)

var (
	ErrGeneral          = errors.New("an error occurred on the server during your request")
	ErrResourceNotFound = errors.New("there is no")

	ErrAmountNegative      = errors.New("the amount of a transaction record must not be negative")
	ErrInvalidRecordType   = errors.New("the record type must be either income or expense")
	ErrAccountNameRequired = errors.New("the account name must be set")
)
