package channelsvc

import (
	"github.com/hmjahid/school-management-system-sub002/core"
	"github.com/hmjahid/school-management-system-sub002/core/notification"
)

type Registry struct {
	adapters map[string]notification.ChannelAdapter
}

var _ notification.AdapterRegistry = (*Registry)(nil)

// NewRegistry wires the delivery adapters keyed by channel id.
func NewRegistry(mailSvc core.EmailService, smsSvc core.SMSService) *Registry {
	return &Registry{
		adapters: map[string]notification.ChannelAdapter{
			notification.ChannelMail: &mailAdapter{svc: mailSvc},
			notification.ChannelSMS:  &smsAdapter{svc: smsSvc},
		},
	}
}

func (r *Registry) Adapter(channel string) (notification.ChannelAdapter, bool) {
	adapter, ok := r.adapters[channel]
	return adapter, ok
}
