package usecase

import "errors"

var (
	ErrNoDepositsSelected  = errors.New("no deposits selected")
	ErrPhoneNumberRequired = errors.New("phone number is required")
)
