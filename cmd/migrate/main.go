// Command migrate manages the PostgreSQL schema.
//
//	migrate up | down | to <version> | version
package main

import (
	"fmt"
	"os"
	"strconv"

	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/logger"

	"github.com/joho/godotenv"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate up | down | to <version> | version")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(logger.Options{MinLevel: logger.ParseLevel(cfg.Log.Level)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	runner := migrations.NewRunner(cfg.Database.PostgresDSN, log)
	defer runner.Close()

	switch os.Args[1] {
	case "up":
		err = runner.RunMigrations()
	case "down":
		err = runner.MigrateDown()
	case "to":
		if len(os.Args) != 3 {
			usage()
		}
		version, perr := strconv.ParseUint(os.Args[2], 10, 32)
		if perr != nil {
			log.Fatal("MIGRATION", fmt.Sprintf("Invalid version %q: %v", os.Args[2], perr))
		}
		err = runner.MigrateTo(uint(version))
	case "version":
		var version uint
		var dirty bool
		version, dirty, err = runner.Version()
		if err == nil {
			log.Info("MIGRATION", fmt.Sprintf("Schema version %d (dirty=%t)", version, dirty))
		}
	default:
		usage()
	}
	if err != nil {
		runner.Close()
		log.Fatal("MIGRATION", err.Error())
	}
	log.Info("MIGRATION", fmt.Sprintf("%s complete", os.Args[1]))
}
