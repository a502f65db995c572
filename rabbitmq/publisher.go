// SPDX-License-Identifier: GPL-3.0-only

package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"whoistel/commons"
	"whoistel/metrics"
	"whoistel/models"
)

// NewPublisherFromEnv returns nil when AMQP_URL is unset.
func NewPublisherFromEnv() (*Publisher, error) {
	url := commons.GetEnv("AMQP_URL")
	if url == "" {
		commons.Logger.Debug("AMQP_URL not set, report events disabled")
		return nil, nil
	}
	return NewPublisher(Config{
		AMQPURL:  url,
		Exchange: commons.GetEnv("REPORTS_EXCHANGE", DefaultExchange),
	})
}

func NewPublisher(config Config) (*Publisher, error) {
	if config.Exchange == "" {
		config.Exchange = DefaultExchange
	}
	p := &Publisher{config: config}
	if err := p.connect(); err != nil {
		return nil, err
	}
	commons.Logger.Infof("Publishing report events to exchange %s", config.Exchange)
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.config.AMQPURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.config.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("exchange declare: %w", err)
	}
	p.conn = conn
	p.channel = ch
	return nil
}

// PublishReport sends r. A nil Publisher does nothing.
func (p *Publisher) PublishReport(ctx context.Context, r *models.Report) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(NewReportEvent(r))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		p.closeLocked()
		if err := p.connect(); err != nil {
			metrics.ReportEventsTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("reconnect: %w", err)
		}
	}

	err = p.channel.PublishWithContext(ctx, p.config.Exchange, RoutingKey(r), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    r.RID,
		Timestamp:    r.CreatedAt,
		Body:         body,
	})
	if err != nil {
		metrics.ReportEventsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("publish: %w", err)
	}
	metrics.ReportEventsTotal.WithLabelValues("published").Inc()
	commons.Logger.Debugf("Report %s published with key %s", r.RID, RoutingKey(r))
	return nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *Publisher) closeLocked() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
