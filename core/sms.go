package core

import "context"

type (
	SMSMessage struct {
		To   string // E.164
		Body string
	}

	// SMSService is any service that can send text messages
	SMSService interface {
		SendMessage(ctx context.Context, msg *SMSMessage) error
	}
)
