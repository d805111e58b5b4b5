package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"strings"

	"grimoire/grimoire/schema"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func postgresDsn(uri string) string {
	parts, err := url.Parse(uri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func main() {
	dbUri := flag.String("db_uri", "", "Database URI")
	flag.Parse()

	if *dbUri == "" {
		log.Fatalf("Missing --db_uri arg")
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(*dbUri, "postgres://") || strings.HasPrefix(*dbUri, "postgresql://") {
		dialector = postgres.Open(postgresDsn(*dbUri))
	} else {
		dialector = sqlite.Open(*dbUri)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	migration := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			// Placeholder representing the original two table layout.
			ID:      "0",
			Migrate: func(*gorm.DB) error { return nil },
		},
	})

	migration.InitSchema(func(txn *gorm.DB) error {
		log.Println("clean database detected, running full schema initialization")

		return txn.AutoMigrate(&schema.Grimoire{}, &schema.Row{})
	})

	if err := migration.Migrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	log.Println("migration completed successfully")
}
