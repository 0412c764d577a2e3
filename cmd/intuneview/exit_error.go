package main

import (
	"errors"
	"fmt"
)

const (
	exitCodeFailure = 1
	// exitCodeFetchFailed reports that the command ran but Graph or the token
	// endpoint refused it.
	exitCodeFetchFailed = 2
	exitCodeCanceled    = 130
)

type exitError struct {
	code   int
	err    error
	silent bool
}

func fetchFailed(message string) *exitError {
	return &exitError{code: exitCodeFetchFailed, err: errors.New(message)}
}

func (e *exitError) Error() string {
	if e == nil {
		return ""
	}
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit %d", e.code)
}

func (e *exitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}
