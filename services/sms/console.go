package smssvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/hmjahid/school-management-system-sub002/core"
)

var (
	SentMessages = make([]core.SMSMessage, 0)
	mu           sync.Mutex
)

// consoleService logs text messages instead of sending them. It stands in
// until an SMS gateway account is provisioned.
type consoleService struct {
	logger        core.Logger
	disableOutput bool
}

var _ core.SMSService = (*consoleService)(nil)

func NewConsoleService(logger core.Logger) core.SMSService {
	return &consoleService{logger: logger}
}

func NewConsoleServiceMock() core.SMSService {
	return &consoleService{disableOutput: true}
}

func (svc consoleService) SendMessage(ctx context.Context, msg *core.SMSMessage) error {
	if msg.To == "" || msg.Body == "" {
		return nil
	}
	if !svc.disableOutput {
		svc.logger.Info(fmt.Sprintf("SMS to %s: %s", msg.To, msg.Body))
	}
	mu.Lock()
	SentMessages = append(SentMessages, *msg)
	mu.Unlock()
	return nil
}

// ClearSentMessages resets the sent message log between tests.
func ClearSentMessages() {
	mu.Lock()
	SentMessages = SentMessages[:0]
	mu.Unlock()
}
