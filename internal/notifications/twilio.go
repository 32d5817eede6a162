package notifications

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioSender sends SMS through the Twilio REST API.
type TwilioSender struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewTwilioSender creates a Twilio-backed SMS sender.
func NewTwilioSender(accountSID, authToken, fromNumber string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client, fromNumber: fromNumber}
}

// SendSMS sends one message and returns the Twilio message SID.
func (t *TwilioSender) SendSMS(_ context.Context, to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.fromNumber)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send SMS: %w", err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("no message SID returned")
	}
	return *resp.Sid, nil
}
