// Package channel implements the outbound delivery channels: plain SMTP
// email and a WhatsApp HTTP gateway. Both senders are safe to call
// repeatedly for the same message; deduplication is not their job.
package channel

import "context"

// EmailSender delivers a subject/body message to an email address.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// WhatsAppSender delivers a text body to a phone number.
type WhatsAppSender interface {
	SendWhatsApp(ctx context.Context, to, body string) error
}
