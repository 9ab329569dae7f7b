/*
SPDX-License-Identifier: Apache-2.0

Copyright 2025 Ouranosinc

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import "fmt"

// Kind classifies a configuration error so callers can react without
// string-matching messages.
type Kind int

const (
	// KindGeneric covers parse errors and anything not otherwise classified.
	KindGeneric Kind = iota
	// KindInvalidTokens covers SINGLE_TOKEN/MULTI_TOKEN/named-token violations.
	KindInvalidTokens
	// KindInvalidResourceKey covers resource_key references that don't resolve.
	KindInvalidResourceKey
	// KindInvalidServiceKey covers component names absent from the active set.
	KindInvalidServiceKey
)

// Error is a fatal configuration-loading or validation error. Config
// errors are always fatal at startup; there is no partial load.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
