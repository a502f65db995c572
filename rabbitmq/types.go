// SPDX-License-Identifier: GPL-3.0-only

package rabbitmq

import (
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"whoistel/history"
	"whoistel/models"
)

const (
	DefaultExchange = "whoistel.reports"
	routingPrefix   = "report."
)

type Config struct {
	AMQPURL  string
	Exchange string
}

// Publisher sends report events to a topic exchange.
type Publisher struct {
	config  Config
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// ReportEvent is the message body published for each stored report.
type ReportEvent struct {
	RID         string    `json:"rid"`
	PhoneNumber string    `json:"phone_number"`
	IsSpam      bool      `json:"is_spam"`
	ReportDate  *string   `json:"report_date,omitempty"`
	Comment     *string   `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewReportEvent(r *models.Report) ReportEvent {
	return ReportEvent{
		RID:         r.RID,
		PhoneNumber: r.PhoneNumber,
		IsSpam:      r.IsSpam,
		ReportDate:  r.ReportDate,
		Comment:     r.Comment,
		CreatedAt:   r.CreatedAt,
	}
}

// RoutingKey is "report.spam" or "report.comment".
func RoutingKey(r *models.Report) string {
	return routingPrefix + history.Kind(r)
}
