// Command cli is the operator tool for seeding users and projects.
//
// Connection settings come from the same defaults, .env file and
// environment variables as the server (DATABASE_DSN, SECRET_KEY, ...).
package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/dmitrijs2005/gatekeeper/internal/admin"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {

	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	app := admin.NewApp(db, repomanager.NewPostgresRepositoryManager(), cfg.SecretKey, cfg.BcryptCost, os.Stdin, os.Stdout)
	return app.Run(ctx, args)
}
