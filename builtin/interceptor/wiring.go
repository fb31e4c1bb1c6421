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
	"github.com/bittoy/interceptor/derived"
	"github.com/bittoy/interceptor/subject"
)

// RegisterCore installs the mandatory interceptor pipeline into ctx:
// outermost to innermost, equality-check, transaction-capture, the
// derived-property engine, lifecycle attach/detach, then change
// broadcast wrapping the terminal storage. Each stage's ordering
// requirement is documented on the type it registers; this function is
// the one place that requirement is actually enforced, via runs-before
// markers rather than registration order alone so the pipeline stays
// correct even if a caller later inserts a collaborator's own
// interceptor between these calls. spec.md §4.4.
func RegisterCore(ctx *subject.Context) (*derived.Engine, error) {
	engine := derived.NewEngine()
	lifecycleWrite := NewLifecycleWrite(ctx)

	if err := ctx.Register(EqualityCheck{}, subject.RunsFirst()); err != nil {
		return nil, err
	}
	if err := ctx.Register(TransactionCapture{}, subject.RunsBefore(engine.Writer)); err != nil {
		return nil, err
	}
	if err := ctx.Register(engine.Reader, subject.RunsFirst()); err != nil {
		return nil, err
	}
	if err := ctx.Register(engine.Writer, subject.RunsBefore(lifecycleWrite)); err != nil {
		return nil, err
	}
	if err := ctx.Register(lifecycleWrite, subject.RunsBefore(ChangeBroadcast{})); err != nil {
		return nil, err
	}
	if err := ctx.Register(ChangeBroadcast{}); err != nil {
		return nil, err
	}
	if err := ctx.Register(engine.Handler, subject.RunsFirst()); err != nil {
		return nil, err
	}
	return engine, nil
}

// RegisterCoreWithConfig is RegisterCore plus wiring cfg's Logger into
// the derived-property engine's own diagnostics (merge-path fallback,
// deferred-removal flush) — the ambient-configuration path described by
// subject.NewConfig for collaborators that build one Config up front
// instead of registering the pipeline by hand.
func RegisterCoreWithConfig(cfg subject.Config) (*derived.Engine, error) {
	if cfg.Logger != nil {
		derived.SetLogger(cfg.Logger)
	}
	return RegisterCore(cfg.Context)
}
