package alerting

import "context"

// Notifier delivers a composite alert to one channel.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(ctx context.Context, subject, body string) error

func (f NotifierFunc) Send(ctx context.Context, subject, body string) error {
	return f(ctx, subject, body)
}

// Notification is the alert built from the latest weekly insight.
type Notification struct {
	Subject string
	Body    string
	// Rules names every rule that fired, in evaluation order.
	Rules []string
}
