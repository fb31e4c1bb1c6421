/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package gls provides the one piece of goroutine-local-storage
// plumbing several packages need to model spec.md's thread-local state
// (the dependency recorder, the change-context scope, the transaction
// coordinator, and the derived-property engine's write-depth counter
// and deferred-removal buffer): a way to recover the calling goroutine's
// identity so each package can key its own private registry by it.
//
// Go deliberately has no public goroutine-id API. Parsing it out of
// runtime.Stack's header line is the same trick several established
// goroutine-local-storage libraries in the wider ecosystem use; it is
// confined to this one internal package so every caller shares a single
// implementation and a single place to replace it if a cleaner mechanism
// ever becomes available.
package gls

import (
	"bytes"
	"runtime"
	"strconv"
)

// ID returns the calling goroutine's runtime id.
func ID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	i := bytes.Index(b, []byte(prefix))
	if i < 0 {
		return 0
	}
	b = b[i+len(prefix):]
	j := bytes.IndexByte(b, ' ')
	if j < 0 {
		return 0
	}
	id, _ := strconv.ParseUint(string(b[:j]), 10, 64)
	return id
}
