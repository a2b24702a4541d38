package ledger

import "errors"

var (
	ErrAmountMismatch      = errors.New("transaction value does not match the required amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnknownMatch        = errors.New("unknown match")
	ErrUnknownDeal         = errors.New("unknown deal")
	ErrUnknownResult       = errors.New("unknown result")
	ErrUnknownSigner       = errors.New("sender is not a party to the agreement")
	ErrAlreadySigned       = errors.New("party already signed this match")
	ErrMatchSettled        = errors.New("match already settled into a deal")
	ErrResultPending       = errors.New("deal already has a result awaiting settlement")
	ErrDealCompleted       = errors.New("deal already completed")
)
