package service

import (
	"context"
	"log"
)

// Notification is an outbound message produced by a ride transition.
type Notification struct {
	Recipient string // phone number
	Text      string
}

// Notifier delivers outbound notifications to riders. Delivery is
// best-effort and fire-and-forget: a failed send never rolls back the
// state transition that produced it.
type Notifier interface {
	Notify(ctx context.Context, recipient, text string) error
}

// Ensure LogNotifier implements Notifier.
var _ Notifier = (*LogNotifier)(nil)

// LogNotifier writes notifications to the process log. The real
// delivery channel (the messaging transport) lives outside this
// service's boundary.
type LogNotifier struct{}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify logs the outbound message.
func (n *LogNotifier) Notify(ctx context.Context, recipient, text string) error {
	log.Printf("[NOTIFICATION] To=%s, Message=%s", recipient, text)
	return nil
}
