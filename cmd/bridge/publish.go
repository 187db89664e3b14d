// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// publisher republishes the measurement stream over MQTT. Samples go
// out at QoS 0; a dropped sample is stale before it could be resent.
type publisher struct {
	client mqtt.Client
	topic  string
	log    *slog.Logger
}

func newPublisher(ctx context.Context, broker, device string, log *slog.Logger) (*publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("crimp-bridge-" + device)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("mqtt connected", "broker", broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "err", err)
	})

	p := &publisher{
		client: mqtt.NewClient(opts),
		topic:  fmt.Sprintf("crimp/%s/force", device),
		log:    log,
	}
	token := p.client.Connect()
	for !token.WaitTimeout(200 * time.Millisecond) {
		if err := ctx.Err(); err != nil {
			p.client.Disconnect(0)
			return nil, err
		}
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}
	return p, nil
}

func (p *publisher) sample(s sample) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	p.client.Publish(p.topic, 0, false, b)
}

func (p *publisher) lowPower() {
	topic := p.topic[:len(p.topic)-len("force")] + "battery"
	p.client.Publish(topic, 1, true, []byte(`{"low_power":true}`))
}

func (p *publisher) close() {
	p.client.Disconnect(250)
}
