package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/hmjahid/school-management-system-sub002/core"
	"github.com/hmjahid/school-management-system-sub002/core/notification"
	"github.com/hmjahid/school-management-system-sub002/core/user"
	"github.com/hmjahid/school-management-system-sub002/storage/database"
	pgrepos "github.com/hmjahid/school-management-system-sub002/storage/database/postgres"
)

var logger *log.Logger // todo: logger service

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	core.InitValidators()
	user.InitValidators()
	notification.InitValidators()

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())
	sqlxDB := sqlx.NewDb(db, "postgres")

	// start CLI
	cli := commandLine{
		db:       db,
		usrRepo:  pgrepos.NewUserRepository(sqlxDB),
		notifSvc: notification.NewService(pgrepos.NewNotificationRepository(sqlxDB), notification.AllowAll),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
