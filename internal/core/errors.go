package core

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %v", e.Err)
	}
	return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidationError(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	Key    any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.Key)
}

func NewNotFoundError(entity string, key any) error {
	return &NotFoundError{Entity: entity, Key: key}
}

// InsufficientFundsError is a policy failure: the transfer source balance
// is lower than the requested amount.
type InsufficientFundsError struct {
	AccountID int64
	Balance   Money
	Requested Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in account %d: balance %s, requested %s",
		e.AccountID, e.Balance, e.Requested)
}

// ConstraintViolationError wraps a uniqueness, foreign key or check
// violation raised by the store.
type ConstraintViolationError struct {
	Constraint string
	Err        error
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("constraint violation (%s): %v", e.Constraint, e.Err)
}

func (e *ConstraintViolationError) Unwrap() error { return e.Err }

// ConnectivityError means the store was unreachable or timed out. The
// operation was not applied.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsInsufficientFunds(err error) bool {
	var target *InsufficientFundsError
	return errors.As(err, &target)
}

func IsConstraintViolation(err error) bool {
	var target *ConstraintViolationError
	return errors.As(err, &target)
}

func IsConnectivity(err error) bool {
	var target *ConnectivityError
	return errors.As(err, &target)
}
