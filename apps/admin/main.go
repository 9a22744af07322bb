package main

import (
	"fmt"
	"os"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/finance"
	"github.com/trezcool/masomo-fees/core/student"
	logsvc "github.com/trezcool/masomo-fees/services/logger"
	"github.com/trezcool/masomo-fees/storage/database"
	sqlxrepos "github.com/trezcool/masomo-fees/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.New(os.Stdout, "ADMIN : ", conf)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = db.Ping(); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	// set up services
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	finance.InitValidators(validate, translator)

	studentRepo := sqlxrepos.NewStudentRepository(db)
	financeRepo := sqlxrepos.NewFinanceRepository(db)

	// start CLI
	cli := commandLine{
		db:         db,
		studentSvc: student.NewService(studentRepo, validate),
		financeSvc: finance.NewService(db, financeRepo, studentRepo, validate, nil, logger),
		conf:       conf,
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
