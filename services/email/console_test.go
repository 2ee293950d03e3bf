package emailsvc

import (
	"context"
	"net/mail"
	"os"
	"strings"
	"testing"

	"github.com/hmjahid/school-management-system-sub002/core"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func TestMain(m *testing.M) {
	core.Conf.TestMode = true
	core.ParseEmailTemplates(nopLogger{})
	os.Exit(m.Run())
}

func Test_consoleService_SendMessage(t *testing.T) {
	ctx := context.Background()
	svc := NewConsoleServiceMock()

	t.Run("plain body", func(t *testing.T) {
		ClearSentMessages()

		msg := &core.EmailMessage{
			To:      []mail.Address{{Name: "Jane Teacher", Address: "jane@test.cd"}},
			Subject: "Staff meeting",
			BodyStr: "Meeting moved to 10:00",
		}
		if err := svc.SendMessage(ctx, msg); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
		if len(SentMessages) != 1 {
			t.Fatalf("len(SentMessages) = %d, want 1", len(SentMessages))
		}
		if got := SentMessages[0].TextContent; got != msg.BodyStr {
			t.Errorf("TextContent = %q, want %q", got, msg.BodyStr)
		}
	})

	t.Run("templated content", func(t *testing.T) {
		ClearSentMessages()

		msg := &core.EmailMessage{
			To:           []mail.Address{{Address: "jane@test.cd"}},
			Subject:      "School closed Friday",
			TemplateName: "announcement",
			TemplateData: map[string]string{"body": "School closed Friday"},
		}
		if err := svc.SendMessage(ctx, msg); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
		if len(SentMessages) != 1 {
			t.Fatalf("len(SentMessages) = %d, want 1", len(SentMessages))
		}
		sent := SentMessages[0]
		if !strings.Contains(sent.TextContent, "School closed Friday") {
			t.Errorf("TextContent = %q, want it to contain the announcement body", sent.TextContent)
		}
		if !strings.Contains(sent.HTMLContent, "School closed Friday") {
			t.Errorf("HTMLContent = %q, want it to contain the announcement body", sent.HTMLContent)
		}
	})

	t.Run("no recipients is a no-op", func(t *testing.T) {
		ClearSentMessages()

		msg := &core.EmailMessage{Subject: "Orphan", BodyStr: "nobody to tell"}
		if err := svc.SendMessage(ctx, msg); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
		if len(SentMessages) != 0 {
			t.Errorf("len(SentMessages) = %d, want 0", len(SentMessages))
		}
	})
}
