package model

import "github.com/shopspring/decimal"

const EventAuthCaptureCreated = "net.authorize.payment.authcapture.created"

// GatewayWebhookEvent is the authorize.net webhook envelope.
type GatewayWebhookEvent struct {
	NotificationID string                `json:"notificationId"`
	EventType      string                `json:"eventType"`
	EventDate      string                `json:"eventDate"`
	WebhookID      string                `json:"webhookId"`
	Payload        GatewayWebhookPayload `json:"payload"`
}

type GatewayWebhookPayload struct {
	ResponseCode  int             `json:"responseCode"`
	AuthCode      string          `json:"authCode"`
	AuthAmount    decimal.Decimal `json:"authAmount"`
	InvoiceNumber string          `json:"invoiceNumber"`
	EntityName    string          `json:"entityName"`
	ID            string          `json:"id"`
}

// Approved reports an authorize.net response code of 1.
func (p GatewayWebhookPayload) Approved() bool {
	return p.ResponseCode == 1
}
