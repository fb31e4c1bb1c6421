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

package subject

// Config holds the runtime-wide configuration shared by the engine
// packages built on top of subject (interceptor, derived, lifecycle,
// transaction). It follows the functional-options shape of
// rule/types.Config.
// Config 保存运行时范围的配置。
type Config struct {
	// Context is the root Context new subjects attach to when no
	// explicit context is supplied.
	Context *Context
	// Logger receives non-fatal diagnostic messages (merge-path
	// fallback, deferred-removal flush, bridge errors).
	Logger Logger
	// Properties are global key/value properties collaborators may read
	// (mirrors rule/types.Config.Properties).
	Properties map[string]any
	// ScriptFuncs registers named native functions callable from script
	// collaborators (bridge/script), mirroring rule/types.Config.Udf.
	ScriptFuncs map[string]any
}

// Option mutates a Config being built by NewConfig.
type Option func(*Config) error

// WithContext sets the root Context.
func WithContext(c *Context) Option {
	return func(cfg *Config) error {
		cfg.Context = c
		return nil
	}
}

// WithLogger sets the Logger.
func WithLogger(l Logger) Option {
	return func(cfg *Config) error {
		cfg.Logger = l
		return nil
	}
}

// WithProperties sets the global Properties map.
func WithProperties(p map[string]any) Option {
	return func(cfg *Config) error {
		cfg.Properties = p
		return nil
	}
}

// WithScriptFunc registers a single named script function.
func WithScriptFunc(name string, fn any) Option {
	return func(cfg *Config) error {
		if cfg.ScriptFuncs == nil {
			cfg.ScriptFuncs = map[string]any{}
		}
		cfg.ScriptFuncs[name] = fn
		return nil
	}
}

// NewConfig builds a Config with defaults (a fresh root Context, the
// default stderr Logger) and applies opts in order.
func NewConfig(opts ...Option) (Config, error) {
	c := Config{
		Context: NewContext(),
		Logger:  DefaultLogger(),
	}
	for _, opt := range opts {
		if err := opt(&c); err != nil {
			return c, err
		}
	}
	return c, nil
}
