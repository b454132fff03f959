// Package msg sends budget alerts over SMS
package msg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kevinburke/twilio-go"
)

// ErrNotConfigured is returned when Twilio credentials are missing
var ErrNotConfigured = errors.New("Twilio not set up")

// Twilio sends SMS alerts through Twilio
type Twilio struct {
	twilioClient *twilio.Client
	smsFrom      string
}

// NewTwilio creates a Twilio sender. With any of the credentials missing
// the sender is created but every send fails with ErrNotConfigured.
func NewTwilio(twilioSid, twilioAuth, smsFrom string) *Twilio {
	ret := &Twilio{smsFrom: smsFrom}
	if twilioSid != "" && twilioAuth != "" && smsFrom != "" {
		ret.twilioClient = twilio.NewClient(twilioSid, twilioAuth, nil)
	}
	return ret
}

// Configured returns true if messages can be sent
func (m *Twilio) Configured() bool {
	return m.twilioClient != nil
}

// SendSMS sends an SMS message
func (m *Twilio) SendSMS(to, msg string) error {
	if m.twilioClient == nil {
		return ErrNotConfigured
	}

	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("empty phone number")
	}

	ret, err := m.twilioClient.Messages.SendMessage(m.smsFrom, to, msg, nil)
	if err != nil {
		return fmt.Errorf("Error sending SMS: %w", err)
	}

	if ret.ErrorCode != 0 {
		return errors.New(ret.ErrorMessage)
	}

	return nil
}
