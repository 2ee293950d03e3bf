package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"testing"
	"time"

	"github.com/hmjahid/school-management-system-sub002/core"
	"github.com/hmjahid/school-management-system-sub002/core/notification"
	"github.com/hmjahid/school-management-system-sub002/core/user"
	dummydb "github.com/hmjahid/school-management-system-sub002/storage/database/dummy"
	testutil "github.com/hmjahid/school-management-system-sub002/tests"
)

var (
	usrRepo   user.Repository
	notifRepo notification.Repository
)

func setup(t *testing.T) *commandLine {
	t.Helper()

	core.Conf.TestMode = true
	core.InitValidators()
	user.InitValidators()
	notification.InitValidators()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	usrRepo = dummydb.NewUserRepository(db)
	notifRepo = dummydb.NewNotificationRepository(db)

	return &commandLine{
		usrRepo:  usrRepo,
		notifSvc: notification.NewService(notifRepo, notification.AllowAll),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "notification", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)

	existing := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "missing flags", args: []string{"adduser", "-username", "lol"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "newbie", "-email", "newbie@test.cd"}, wantErr: errHelp},
		{name: "create", args: []string{"adduser", "-username", "newbie", "-email", "newbie@test.cd"}, extra: extra{pwd: "lol"}},
		{name: "create admin", args: []string{"adduser", "-username", "boss01", "-email", "boss@test.cd", "-admin"}, extra: extra{pwd: "lol"}},
		{name: "update existing", args: []string{"adduser", "-username", existing.Username, "-email", existing.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			uname := args[3]
			usr, err := usrRepo.GetUserByUsernameOrEmail(context.Background(), uname)
			if err != nil {
				t.Fatalf("GetUserByUsernameOrEmail(%s) failed: %v", uname, err)
			}
			if !usr.IsActive {
				t.Error("user is not active")
			}
			if usr.ID == existing.ID && bytes.Equal(usr.PasswordHash, existing.PasswordHash) {
				t.Error("failed to update password")
			}
			if tt.name == "create admin" && len(usr.Roles) != len(user.AllRoles) {
				t.Errorf("roles = %v, want all roles", usr.Roles)
			}
		})
	}
}

func Test_commandLine_cancelNotification(t *testing.T) {
	cli := setup(t)

	anchor := time.Now().UTC().Add(time.Hour)
	n := testutil.CreateNotification(t, notifRepo, "Doomed", []string{notification.ChannelMail},
		[]notification.Recipient{{Kind: notification.RecipientEveryone}},
		testutil.Once(anchor), anchor)

	tests := []cliTest{
		{name: "no id", args: []string{"cancelnotification"}, wantErr: errHelp},
		{name: "not found", args: []string{"cancelnotification", "-id", "4cc72a2b-ffd3-4b8b-a644-bfba1bcbd2a1"}, wantErr: notification.ErrNotFound},
		{name: "cancel pending", args: []string{"cancelnotification", "-id", n.ID}},
		{name: "cancel again", args: []string{"cancelnotification", "-id", n.ID}, wantErr: notification.ErrNotCancellable},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			refetched, err := notifRepo.GetNotification(context.Background(), n.ID)
			if err != nil {
				t.Fatalf("GetNotification() failed: %v", err)
			}
			if refetched.Status != notification.StatusCancelled {
				t.Errorf("status = %s, want %s", refetched.Status, notification.StatusCancelled)
			}
		})
	}
}

func Test_commandLine_notificationStats(t *testing.T) {
	cli := setup(t)

	anchor := time.Now().UTC().Add(time.Hour)
	testutil.CreateNotification(t, notifRepo, "One", []string{notification.ChannelMail},
		[]notification.Recipient{{Kind: notification.RecipientEveryone}},
		testutil.Once(anchor), anchor)

	if err := cli.run([]string{"admin", "notificationstats"}); err != nil {
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}
