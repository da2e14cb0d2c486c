package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"

	"posthub.org/internal/config"
	"posthub.org/internal/migrate"
	"posthub.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)

	cfg, err := config.Load("posthub-migrate", os.Args[1:], os.LookupEnv)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal(err)
	}
	args := cfg.Args
	if len(args) == 0 {
		log.Fatal("usage: migrate [flags] up|down|status|version")
	}
	dsn := cfg.Postgres.URL()
	if dsn == "" {
		log.Fatal("missing DSN: provide --database-url, --postgres-host or POSTHUB_DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()
	db := store.DB()

	switch args[0] {
	case "up":
		err = migrate.Up(ctx, db)
	case "down":
		err = migrate.Down(ctx, db)
	case "status":
		err = migrate.Status(ctx, db)
	case "version":
		var v int64
		v, err = migrate.Version(ctx, db)
		if err == nil {
			fmt.Println(v)
		}
	default:
		log.Fatalf("unknown command %q", args[0])
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", args[0], err)
	}
}
