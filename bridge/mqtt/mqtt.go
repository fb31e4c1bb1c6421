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

// Package mqtt republishes PropertyChange notifications to an MQTT
// broker via github.com/eclipse/paho.mqtt.golang — the explicit
// MQTT/OPC-bridge collaborator spec.md calls out as a first-class
// external consumer the core itself has no opinion about. This
// dependency sits in the teacher's go.mod unused by any teacher source
// file; this package gives it the home the teacher's own tree never
// built, plumbed through the same Observable subscription shape
// changectx/subscriptions.go exposes to any other consumer.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/bittoy/interceptor/bridge/sourcepath"
	"github.com/bittoy/interceptor/changectx"
	"github.com/bittoy/interceptor/subject"
)

// defaultConnectTimeout bounds Start when the caller's context carries
// no deadline of its own.
const defaultConnectTimeout = 10 * time.Second

// Options configures a Bridge. Bound from a generic map via
// subject.DecodeConfig/NewFromConfig at collaborators' discretion.
type Options struct {
	Broker   string `subject:"broker"`
	ClientID string `subject:"clientID"`
	QoS      byte   `subject:"qos"`
	Retained bool   `subject:"retained"`
}

// Bridge republishes every PropertyChange of a subscribed (subject,
// property) pair to the MQTT topic its sourcepath.Provider computes for
// it. It implements subject.HostedService so an embedder can start and
// stop its broker connection alongside the rest of a context's hosted
// services, without the core ever blocking on it directly.
type Bridge struct {
	client paho.Client
	paths  *sourcepath.Provider
	opts   Options

	// Logger receives non-fatal publish failures (topic resolution,
	// payload marshaling) that Publish's subscription callback has no
	// caller to return an error to.
	Logger subject.Logger

	unsubscribers []func()
}

var _ subject.HostedService = (*Bridge)(nil)

// New constructs a Bridge. It does not connect until Start is called.
func New(opts Options, paths *sourcepath.Provider) *Bridge {
	clientOpts := paho.NewClientOptions().AddBroker(opts.Broker).SetClientID(opts.ClientID)
	return &Bridge{
		client: paho.NewClient(clientOpts),
		paths:  paths,
		opts:   opts,
		Logger: subject.NopLogger(),
	}
}

// NewFromConfig decodes raw (a generic, weakly-typed configuration map —
// the shape a collaborator reads from JSON/YAML/a wire message) into
// Options via subject.DecodeConfig, then constructs a Bridge from it.
func NewFromConfig(raw map[string]any, paths *sourcepath.Provider) (*Bridge, error) {
	var opts Options
	if err := subject.DecodeConfig(raw, &opts); err != nil {
		return nil, fmt.Errorf("mqtt: decode options: %w", err)
	}
	return New(opts, paths), nil
}

func (b *Bridge) logger() subject.Logger {
	if b.Logger == nil {
		return subject.NopLogger()
	}
	return b.Logger
}

// Start connects to the configured broker.
func (b *Bridge) Start(ctx context.Context) error {
	token := b.client.Connect()
	if !token.WaitTimeout(deadlineOrDefault(ctx)) {
		return fmt.Errorf("mqtt: connect to %s timed out", b.opts.Broker)
	}
	return token.Error()
}

// Stop disconnects from the broker and cancels every PropertyChange
// subscription this Bridge installed.
func (b *Bridge) Stop(ctx context.Context) error {
	for _, unsub := range b.unsubscribers {
		unsub()
	}
	b.unsubscribers = nil
	b.client.Disconnect(250)
	return nil
}

// Publish subscribes (s, property) so every future change is published,
// as JSON, to the topic b.paths computes for it.
func (b *Bridge) Publish(s *subject.Subject, property string) error {
	unsub := changectx.Subscribe(s, property, func(change changectx.PropertyChange) {
		topic, err := b.paths.Path(s, property)
		if err != nil {
			b.logger().Printf("mqtt: resolve topic for %s.%s: %v", s.Descriptor().Type.String(), property, err)
			return
		}
		payload, err := json.Marshal(change.NewValue)
		if err != nil {
			b.logger().Printf("mqtt: marshal %s.%s payload: %v", s.Descriptor().Type.String(), property, err)
			return
		}
		b.client.Publish(topic, b.opts.QoS, b.opts.Retained, payload)
	})
	b.unsubscribers = append(b.unsubscribers, unsub)
	return nil
}

func deadlineOrDefault(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		return time.Until(dl)
	}
	return defaultConnectTimeout
}
