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

import "github.com/mitchellh/mapstructure"

// DecodeConfig binds a generic, weakly-typed configuration map (the
// shape a collaborator reads from JSON/YAML/a wire message) onto a
// concrete options struct, the same role components/common/end_node.go's
// maps.Map2Struct plays for node configuration. bridge/mqtt uses this to
// turn a map[string]any into its typed Options.
func DecodeConfig(raw map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "subject",
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
