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

import "fmt"

// Errors added to the list of variables below must be added to the Errors
// slice a little below in this same file.

var (
	// DK1001 Table does not exist
	DK1001 = errorWithCode("DK1001", Catalog, "Catalog Error: Table with name %s does not exist!")
	// DK1002 Table already exists
	DK1002 = errorWithCode("DK1002", Catalog, "Catalog Error: Table with name \"%s\" already exists!")
	// DK1003 Registered frames are read-only
	DK1003 = errorWithCode("DK1003", Catalog, "Catalog Error: %s is a registered frame and cannot be modified")

	// DK2001 Parser error
	DK2001 = errorWithCode("DK2001", InvalidInput, "Parser Error: %s")
	// DK2002 Binder error
	DK2002 = errorWithCode("DK2002", InvalidInput, "Binder Error: %s")
	// DK2003 Invalid relation alias
	DK2003 = errorWithCode("DK2003", InvalidInput, "Invalid Input Error: %q is not a valid relation alias")
	// DK2004 Insert into non-table relation
	DK2004 = errorWithCode("DK2004", InvalidInput, "Invalid Input Error: insert can only be used on a table relation")
	// DK2005 Setting errors
	DK2005 = errorWithCode("DK2005", InvalidInput, "Invalid Input Error: %s")
	// DK2006 Connection closed
	DK2006 = errorWithCode("DK2006", InvalidInput, "Connection Error: Connection already closed!")

	// DK3001 Conversion failure
	DK3001 = errorWithCode("DK3001", Conversion, "Conversion Error: Could not convert %s to %s")
	// DK3002 Numeric overflow
	DK3002 = errorWithCode("DK3002", OutOfRange, "Out of Range Error: %s")
	// DK3003 Division by zero
	DK3003 = errorWithCode("DK3003", OutOfRange, "Out of Range Error: division by zero")

	// DK4001 Memory limit exceeded
	DK4001 = errorWithCode("DK4001", OutOfMemory, "Out of Memory Error: could not allocate %s (%s/%s used)")

	// DK5001 Not implemented
	DK5001 = errorWithCode("DK5001", NotImplemented, "Not implemented Error: %s")

	// DK9001 General Error
	DK9001 = errorWithCode("DK9001", Internal, "[BUG] %s")

	// Errors is a list of errors that must match all the variables
	// defined above to enable auto-documentation of error codes.
	Errors = []func(args ...any) *Error{
		DK1001, DK1002, DK1003,
		DK2001, DK2002, DK2003, DK2004, DK2005, DK2006,
		DK3001, DK3002, DK3003,
		DK4001,
		DK5001,
		DK9001,
	}
)

func errorWithCode(id string, code Code, short string) func(args ...any) *Error {
	return func(args ...any) *Error {
		s := short
		if len(args) != 0 {
			s = fmt.Sprintf(s, args...)
		}
		return New(code, id+": "+s)
	}
}
