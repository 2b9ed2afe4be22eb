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

package dkerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterruptedMessage(t *testing.T) {
	assert.Equal(t, "Query interrupted", ErrInterrupted.Error())
	assert.Equal(t, Interrupted, ErrInterrupted.Code())
}

func TestIsInterrupted(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "sentinel", err: ErrInterrupted, expected: true},
		{name: "wrapped", err: fmt.Errorf("primitive 0 failed: %w", ErrInterrupted), expected: true},
		{name: "fresh copy", err: New(Interrupted, InterruptedMessage), expected: true},
		{name: "catalog", err: DK1001("tbl"), expected: false},
		{name: "plain", err: errors.New("boom"), expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsInterrupted(tc.err))
		})
	}
}

func TestErrorsIsMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(Interrupted, InterruptedMessage))
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.NotErrorIs(t, DK3003(), ErrInterrupted)
}

func TestErrorCatalog(t *testing.T) {
	err := DK1001("tbl")
	assert.Equal(t, "DK1001: Catalog Error: Table with name tbl does not exist!", err.Error())
	assert.Equal(t, Catalog, CodeOf(err))
	assert.True(t, IsFailed(err))

	assert.Equal(t, "DK3003: Out of Range Error: division by zero", DK3003().Error())

	for _, f := range Errors {
		require.NotEmpty(t, f().Error())
	}
}

func TestErrorfUnwraps(t *testing.T) {
	inner := errors.New("inner")
	err := Errorf(Internal, "while running: %w", inner)
	assert.Equal(t, "while running: inner", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, Internal, CodeOf(fmt.Errorf("x: %w", err)))
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "INTERRUPTED", Interrupted.String())
	assert.Equal(t, "Code(99)", Code(99).String())
	assert.Equal(t, Unknown, CodeOf(errors.New("x")))
	assert.Nil(t, Wrap(Internal, nil))
}
