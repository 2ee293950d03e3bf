package channelsvc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hmjahid/school-management-system-sub002/core"
	"github.com/hmjahid/school-management-system-sub002/core/notification"
	"github.com/hmjahid/school-management-system-sub002/core/user"
)

type smsAdapter struct {
	svc core.SMSService
}

var _ notification.ChannelAdapter = (*smsAdapter)(nil)

func (a *smsAdapter) Send(ctx context.Context, usr user.User, n notification.Notification) error {
	if usr.Phone == "" {
		return errors.New("user has no phone number")
	}

	body := n.Payload["sms_body"]
	if body == "" {
		body = n.Payload["body"]
	}
	if body == "" {
		body = n.Name
	}
	return a.svc.SendMessage(ctx, &core.SMSMessage{To: usr.Phone, Body: body})
}
