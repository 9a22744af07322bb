// Package di wires the API dependencies with a dig container.
package di

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-fees/apps/api/echo"
	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/finance"
	"github.com/trezcool/masomo-fees/core/student"
	emailsvc "github.com/trezcool/masomo-fees/services/email"
	logsvc "github.com/trezcool/masomo-fees/services/logger"
	"github.com/trezcool/masomo-fees/services/notify"
	"github.com/trezcool/masomo-fees/storage/database"
	sqlxrepos "github.com/trezcool/masomo-fees/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.New(os.Stdout, "API : ", conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.New(os.Stdout, "DB : ", conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB, core.DBExecutor) {
	db, err := database.SetUp(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := core.NewValidator(translator)
	finance.InitValidators(validate, translator)
	return validate
}

// newHub returns the event hub with every subscriber registered.
func newHub(conf *core.Config, logger core.Logger, studentRepo student.Repository, mailSvc core.EmailService) (*notify.Hub, core.Broadcaster) {
	hub := notify.NewHub(logger)
	notify.NewReceiptMailer(conf, studentRepo, mailSvc).Register(hub)
	return hub, hub
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	translator ut.Translator,
	financeSvc *finance.Service,
	studentSvc *student.Service,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		FinanceSvc: financeSvc,
		StudentSvc: studentSvc,
		Translator: translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(sqlxrepos.NewStudentRepository, dig.As(new(student.Repository))))
	must(c.Provide(sqlxrepos.NewFinanceRepository, dig.As(new(finance.Repository))))
	must(c.Provide(newHub))
	must(c.Provide(student.NewService))
	must(c.Provide(finance.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
