package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrDuplicateCode marks an insert that lost on a generated booking reference or ticket number.
	// The caller should draw a fresh code and try again.
	ErrDuplicateCode = errors.New("duplicate generated code")
	// ErrSerialization marks a transaction the store aborted to keep concurrent writers serial; safe to retry.
	ErrSerialization = errors.New("serialization failure")
	// ErrTxFailed marks a transaction that could not begin or commit.
	ErrTxFailed = errors.New("transaction failed")
)
