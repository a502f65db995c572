// SPDX-License-Identifier: GPL-3.0-only

package rabbitmq

import (
	"encoding/json"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"whoistel/commons"
)

type ConsumerConfig struct {
	AMQPURL    string
	Exchange   string
	BindingKey string
	QueueName  string
}

// HandlerFunc processes one event. Returning an error rejects the message
// without requeueing it.
type HandlerFunc func(ReportEvent) error

type Consumer struct {
	config   ConsumerConfig
	conn     *amqp.Connection
	channel  *amqp.Channel
	handle   HandlerFunc
	stopChan chan struct{}
	done     chan struct{}
}

func NewConsumer(config ConsumerConfig, handle HandlerFunc) (*Consumer, error) {
	if config.Exchange == "" {
		config.Exchange = DefaultExchange
	}
	c := &Consumer{config: config, handle: handle, stopChan: make(chan struct{}), done: make(chan struct{})}

	conn, err := amqp.Dial(config.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	c.conn = conn

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("channel: %w", err)
	}
	c.channel = ch

	if err := ch.Qos(1, 0, false); err != nil {
		c.Close()
		return nil, fmt.Errorf("qos: %w", err)
	}

	if err := ch.ExchangeDeclare(config.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("exchange declare: %w", err)
	}

	qName := config.QueueName
	if qName == "" {
		qName = QueueName(config.BindingKey)
	}

	queue, err := ch.QueueDeclare(qName, true, false, false, false, nil)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}

	if err := ch.QueueBind(queue.Name, config.BindingKey, config.Exchange, false, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("queue bind to exchange '%s': %w", config.Exchange, err)
	}

	config.QueueName = queue.Name
	c.config = config

	commons.Logger.Infof("Queue ready: %s (exchange=%s, key=%s)", queue.Name, config.Exchange, config.BindingKey)
	return c, nil
}

// QueueName derives a queue name from a binding key: "report.*" gives "whoistel_report_any".
func QueueName(bindingKey string) string {
	r := strings.NewReplacer(".", "_", "*", "any", "#", "all")
	return "whoistel_" + r.Replace(bindingKey)
}

func (c *Consumer) Start() error {
	msgs, err := c.channel.Consume(
		c.config.QueueName, "", false, false, false, false, nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		defer close(c.done)
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					commons.Logger.Warn("Message channel closed")
					return
				}
				c.handleMessage(msg)
			case <-c.stopChan:
				commons.Logger.Info("Stop signal received")
				return
			}
		}
	}()
	return nil
}

func (c *Consumer) handleMessage(msg amqp.Delivery) {
	var event ReportEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		commons.Logger.Warnf("Dropping malformed report event %s: %v", msg.MessageId, err)
		_ = msg.Nack(false, false)
		return
	}

	if err := c.handle(event); err != nil {
		commons.Logger.Errorf("Report event %s rejected: %v", event.RID, err)
		_ = msg.Nack(false, false)
		return
	}

	if err := msg.Ack(false); err != nil {
		commons.Logger.Errorf("Ack failed: %v", err)
	}
}

// Stop ends consumption and waits for the in-flight message.
func (c *Consumer) Stop() {
	close(c.stopChan)
	<-c.done
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
