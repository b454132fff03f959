package client

import (
	"errors"
	"fmt"

	"github.com/simpleiot/budgetbot/bot"
	"github.com/simpleiot/budgetbot/data"
)

// Notifier delivers an alert to the people listed in the config
type Notifier interface {
	Notify(c data.Config, msg string) error
}

// SMSSender is implemented by msg.Twilio
type SMSSender interface {
	SendSMS(to, msg string) error
}

// SMSNotifier sends alerts to every number in alerts.sms
type SMSNotifier struct {
	sms SMSSender
}

// NewSMSNotifier creates an SMS notifier
func NewSMSNotifier(sms SMSSender) *SMSNotifier {
	return &SMSNotifier{sms: sms}
}

// Notify sends msg to each number, failures don't stop the remaining sends
func (n *SMSNotifier) Notify(c data.Config, msg string) error {
	var errs []error
	for _, to := range c.Alerts.SMS {
		err := n.sms.SendSMS(to, msg)
		if err != nil {
			errs = append(errs, fmt.Errorf("Error sending SMS to %v: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

// TelegramNotifier messages the authorized users when alerts.telegram is set
type TelegramNotifier struct {
	sender bot.Sender
}

// NewTelegramNotifier creates a Telegram notifier
func NewTelegramNotifier(sender bot.Sender) *TelegramNotifier {
	return &TelegramNotifier{sender: sender}
}

// Notify sends msg to each authorized user. A private chat has the same
// ID as the user.
func (n *TelegramNotifier) Notify(c data.Config, msg string) error {
	if !c.Alerts.Telegram {
		return nil
	}

	var errs []error
	for _, id := range c.AuthorizedUsers {
		err := n.sender.Send(id, bot.Reply{Text: msg})
		if err != nil {
			errs = append(errs, fmt.Errorf("Error sending alert to %v: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
