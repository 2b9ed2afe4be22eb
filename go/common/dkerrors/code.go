// Copyright 2022 The Vitess Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Modifications Copyright 2025 Supabase, Inc.

// Package dkerrors defines the coded errors returned by duckling. Every
// error that is not Interrupted belongs to the "failed" family: the query
// could not run to completion for a reason other than an external abort.
package dkerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error.
type Code int

const (
	// Unknown is used for errors that did not originate in duckling.
	Unknown Code = iota
	// Interrupted means the execution was aborted by an external interrupt.
	Interrupted
	// InvalidInput covers syntax and binding errors.
	InvalidInput
	// Catalog covers missing or duplicate catalog entries.
	Catalog
	// Conversion covers failed casts between types.
	Conversion
	// OutOfRange covers arithmetic overflow and division by zero.
	OutOfRange
	// OutOfMemory is returned when the memory accountant refuses a reservation.
	OutOfMemory
	// NotImplemented covers SQL the engine recognises but does not support.
	NotImplemented
	// Internal is a bug.
	Internal
)

var codeNames = map[Code]string{
	Unknown:        "UNKNOWN",
	Interrupted:    "INTERRUPTED",
	InvalidInput:   "INVALID_INPUT",
	Catalog:        "CATALOG",
	Conversion:     "CONVERSION",
	OutOfRange:     "OUT_OF_RANGE",
	OutOfMemory:    "OUT_OF_MEMORY",
	NotImplemented: "NOT_IMPLEMENTED",
	Internal:       "INTERNAL",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// InterruptedMessage is the exact, user-visible text of an interrupted query.
const InterruptedMessage = "Query interrupted"

// Error is the error type returned by every duckling package.
type Error struct {
	code Code
	msg  string
	err  error
}

// New returns an error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Errorf returns an error with the given code and a formatted message. A %w
// verb in format is unwrapped as usual.
func Errorf(code Code, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{code: code, msg: err.Error(), err: errors.Unwrap(err)}
}

// Wrap attaches a code to an existing error, keeping its message.
func Wrap(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{code: code, msg: err.Error(), err: err}
}

func (e *Error) Error() string {
	return e.msg
}

// Code returns the error's classification.
func (e *Error) Code() Code {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is matches errors by code and message so that sentinels such as
// ErrInterrupted compare equal to copies created elsewhere.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code && e.msg == t.msg
}

// ErrInterrupted is returned by every execution aborted through its
// cancellation token or context.
var ErrInterrupted = New(Interrupted, InterruptedMessage)

// CodeOf returns the code of the first *Error in err's chain, or Unknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return Unknown
}

// IsInterrupted reports whether err is, or wraps, an interruption.
func IsInterrupted(err error) bool {
	return err != nil && CodeOf(err) == Interrupted
}

// IsFailed reports whether err is a non-interrupt execution failure.
func IsFailed(err error) bool {
	return err != nil && !IsInterrupted(err)
}
