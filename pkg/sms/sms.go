package sms

import (
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Client sends text messages through Twilio.
type Client struct {
	rest       *twilio.RestClient
	fromNumber string
}

func New(accountSID, authToken, fromNumber string) *Client {
	return &Client{
		rest: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		fromNumber: fromNumber,
	}
}

func (c *Client) Send(toNumber, body string) error {
	if !strings.HasPrefix(toNumber, "+") {
		return fmt.Errorf("invalid phone number: %s", toNumber)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(c.fromNumber)
	params.SetBody(body)

	if _, err := c.rest.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", toNumber, err)
	}
	return nil
}
