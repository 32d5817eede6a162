package notifications

import "context"

// SMSSender delivers a text message. Implementations must be safe for
// concurrent use.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (providerRef string, err error)
}

// PushSender delivers a push notification to a device token.
type PushSender interface {
	SendPush(ctx context.Context, token, title, body string, data map[string]string) (providerRef string, err error)
}
