package errors

import "fmt"

var (
	ErrInvalidArgument        = fmt.Errorf("invalid argument")
	ErrNotRegistered          = fmt.Errorf("no saved credential for this account")
	ErrRegistrationInProgress = fmt.Errorf("another registration is already in progress")
	ErrNoPendingRegistration  = fmt.Errorf("no pending registration")
	ErrPhoneMismatch          = fmt.Errorf("phone number does not match the pending registration")
	ErrConnectFailure         = fmt.Errorf("connection to telegram failed")
	ErrWorkerPanic            = fmt.Errorf("worker panic")
	ErrInvalidPassword        = fmt.Errorf("invalid admin password")
	ErrTokenGeneration        = fmt.Errorf("token generation failed")
)
