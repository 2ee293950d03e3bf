package channelsvc

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/hmjahid/school-management-system-sub002/core"
	"github.com/hmjahid/school-management-system-sub002/core/notification"
	"github.com/hmjahid/school-management-system-sub002/core/user"
)

type mailAdapter struct {
	svc core.EmailService
}

var _ notification.ChannelAdapter = (*mailAdapter)(nil)

func (a *mailAdapter) Send(ctx context.Context, usr user.User, n notification.Notification) error {
	if usr.Email == "" {
		return errors.New("user has no email address")
	}

	subject := n.Payload["subject"]
	if subject == "" {
		subject = n.Name
	}
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: subject,
		BodyStr: n.Payload["body"],
	}
	// an html template named after the notification type may exist
	if tmpl := n.Payload["template"]; tmpl != "" {
		msg.TemplateName = tmpl
		msg.TemplateData = n.Payload
	}
	return a.svc.SendMessage(ctx, msg)
}
