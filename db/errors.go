package db

import "fmt"

// Common errors
var (
	ErrRepositoryNotFound = fmt.Errorf("repository not found")
	ErrSubscriberNotFound = fmt.Errorf("subscriber not found")
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrDatabaseConnection = fmt.Errorf("database connection error")
	ErrQueryFailed        = fmt.Errorf("database query failed")
	ErrTransactionFailed  = fmt.Errorf("transaction failed")
)
