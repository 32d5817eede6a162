package notifications

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FirebaseSender sends push notifications through Firebase Cloud Messaging.
type FirebaseSender struct {
	client *messaging.Client
}

// NewFirebaseSender creates an FCM-backed push sender. With an empty
// credentials path the application default credentials are used.
func NewFirebaseSender(ctx context.Context, projectID, credentialsPath string) (*FirebaseSender, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &FirebaseSender{client: client}, nil
}

// SendPush delivers one notification to a device token.
func (f *FirebaseSender) SendPush(ctx context.Context, token, title, body string, data map[string]string) (string, error) {
	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	response, err := f.client.Send(ctx, message)
	if err != nil {
		return "", fmt.Errorf("failed to send push notification: %w", err)
	}
	return response, nil
}
