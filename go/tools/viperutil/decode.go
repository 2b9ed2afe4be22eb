// Copyright 2025 Supabase, Inc.
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

package viperutil

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/mapstructure"
)

// ByteSize is a number of bytes that is written in config files and flags
// in human form: "512MB", "5000GB", "1.5GiB".
type ByteSize uint64

// Set implements pflag.Value.
func (b *ByteSize) Set(s string) error {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	*b = ByteSize(n)
	return nil
}

func (b *ByteSize) String() string {
	if *b == 0 {
		return ""
	}
	// Fall back to plain bytes when the short form is lossy.
	s := humanize.Bytes(uint64(*b))
	if n, err := humanize.ParseBytes(s); err == nil && n == uint64(*b) {
		return s
	}
	return strconv.FormatUint(uint64(*b), 10)
}

// Type implements pflag.Value.
func (b *ByteSize) Type() string { return "bytes" }

// DecodeHook returns the decode hooks used for values read from config files
// and the environment.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		decodeByteSize,
		decodeHandlingValue,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func decodeByteSize(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(ByteSize(0)) {
		return data, nil
	}

	switch from.Kind() {
	case reflect.String:
		s := reflect.ValueOf(data).String()
		if s == "" {
			return ByteSize(0), nil
		}
		var b ByteSize
		if err := b.Set(s); err != nil {
			return nil, err
		}
		return b, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := reflect.ValueOf(data).Int()
		if n < 0 {
			return nil, fmt.Errorf("invalid byte size %d", n)
		}
		return ByteSize(n), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return ByteSize(reflect.ValueOf(data).Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := reflect.ValueOf(data).Float()
		if f < 0 {
			return nil, fmt.Errorf("invalid byte size %v", f)
		}
		return ByteSize(f), nil
	}
	return data, nil
}
