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

package interceptor

import (
	"github.com/bittoy/interceptor/interceptor"
	"github.com/bittoy/interceptor/subject"
	"github.com/bittoy/interceptor/transaction"
)

// TransactionCapture short-circuits the rest of the write chain —
// derived propagation, lifecycle, and storage all included — while a
// transaction is open on the calling goroutine and not yet committing,
// recording the write intent instead. During commit replay (the
// transaction's state is Committing, so transaction.IsActive reports
// false) it steps aside and lets the write proceed normally. spec.md §4.10.
type TransactionCapture struct{}

var _ interceptor.WriteInterceptor = TransactionCapture{}

func (TransactionCapture) PointCut(ctx *interceptor.WriteContext) bool { return true }

func (TransactionCapture) WriteProperty(ctx *interceptor.WriteContext, next interceptor.WriteNext) error {
	if !transaction.IsActive() {
		return next(ctx)
	}
	tx := transaction.Active()
	ref := subject.Ref(ctx.Subject, ctx.Property.Name)
	return tx.Capture(ref, ctx.CurrentValue, ctx.NewValue, nil)
}
