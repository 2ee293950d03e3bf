package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/hmjahid/school-management-system-sub002/apps/api/echo"
	"github.com/hmjahid/school-management-system-sub002/core"
	"github.com/hmjahid/school-management-system-sub002/core/notification"
	"github.com/hmjahid/school-management-system-sub002/core/user"
	channelsvc "github.com/hmjahid/school-management-system-sub002/services/channel"
	emailsvc "github.com/hmjahid/school-management-system-sub002/services/email"
	logsvc "github.com/hmjahid/school-management-system-sub002/services/logger"
	schedsvc "github.com/hmjahid/school-management-system-sub002/services/scheduler"
	smssvc "github.com/hmjahid/school-management-system-sub002/services/sms"
	"github.com/hmjahid/school-management-system-sub002/storage/database"
	pgrepos "github.com/hmjahid/school-management-system-sub002/storage/database/postgres"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		core.Conf,
	)
	logger.Enable(!core.Conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		core.Conf,
	)
	dbLogger.Enable(!core.Conf.Debug)

	// set up DB
	db, err := setUpDB(core.Conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	sqlxDB := sqlx.NewDb(db, "postgres")

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	smsSvc := smssvc.NewConsoleService(logger)

	usrSvc := user.NewService(pgrepos.NewUserRepository(sqlxDB))

	notifRepo := pgrepos.NewNotificationRepository(sqlxDB)
	notifSvc := notification.NewService(notifRepo, echoapi.NewNotificationGate())
	resolver := notification.NewResolver(usrSvc, pgrepos.NewPreferenceRepository(sqlxDB))
	dispatcher := notification.NewDispatcher(
		notifRepo,
		resolver,
		channelsvc.NewRegistry(mailSvc, smsSvc),
		logger,
		core.Conf,
	)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", core.Conf.Build))
	defer logger.Info("Application stopped")

	core.InitValidators()
	user.InitValidators()
	notification.InitValidators()

	core.ParseEmailTemplates(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(core.Conf.Build)
	expvar.NewString("env").Set(core.Conf.Env)

	go func() {
		if err = http.ListenAndServe(core.Conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Dispatch Scheduler

	scheduler := schedsvc.NewTickScheduler(dispatcher, logger, core.Conf)
	if err = scheduler.Start(); err != nil {
		logger.Fatal(fmt.Sprintf("starting scheduler: %v", err), err)
	}
	defer scheduler.Stop()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(&echoapi.Options{
		Address:  core.Conf.Server.Host,
		Logger:   logger,
		UserSvc:  usrSvc,
		NotifSvc: notifSvc,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
	case <-server.ShutdownSignal():
		logger.Info("integrity issue: Start shutdown...")
	}

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), core.Conf.Server.ShutdownTimeout)
	defer cancel()

	// asking listener to shutdown and shed load
	if err = server.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
