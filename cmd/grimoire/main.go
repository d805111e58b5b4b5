package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"grimoire/frontend"
	"grimoire/grimoire/schema"
	"grimoire/grimoire/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type grimoireEnv struct {
	DatabaseUri    string
	LogDir         string
	AllowedOrigins string
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

func loadEnv() grimoireEnv {
	missingEnvs := []string{}

	requiredEnv := func(key string) string {
		env := os.Getenv(key)
		if env == "" {
			missingEnvs = append(missingEnvs, key)
			slog.Error("missing required env variable", "key", key)
		}
		return env
	}

	env := grimoireEnv{
		DatabaseUri:    requiredEnv("DATABASE_URI"),
		LogDir:         os.Getenv("LOG_DIR"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
	}

	if len(missingEnvs) > 0 {
		log.Fatalf("The following required env vars are missing: %s", strings.Join(missingEnvs, ", "))
	}

	return env
}

func postgresDsn(uri string) string {
	parts, err := url.Parse(uri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func initLogging(logFile *os.File) {
	log.SetFlags(log.Lshortfile | log.Ltime | log.Ldate)
	if logFile != nil {
		log.SetOutput(io.MultiWriter(logFile, os.Stderr))
		slog.Info("logging initialized", "log_file", logFile.Name())
	}
}

func initDb(databaseUri string) *gorm.DB {
	var dialector gorm.Dialector
	if strings.HasPrefix(databaseUri, "postgres://") || strings.HasPrefix(databaseUri, "postgresql://") {
		dialector = postgres.Open(postgresDsn(databaseUri))
	} else {
		dialector = sqlite.Open(databaseUri)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	err = db.AutoMigrate(&schema.Grimoire{}, &schema.Row{})
	if err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

func allowedOrigins(env grimoireEnv) []string {
	if env.AllowedOrigins == "" {
		return []string{"*"}
	}
	return strings.Split(env.AllowedOrigins, ",")
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 8000, "Port to run server on")
	noFrontend := flag.Bool("no_frontend", false, "If specified only the API is served, without the embedded web UI.")

	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}
	env := loadEnv()

	var logFile *os.File
	if env.LogDir != "" {
		err := os.MkdirAll(env.LogDir, 0777)
		if err != nil {
			log.Fatalf("error creating log dir: %v", err)
		}

		logFile, err = os.OpenFile(filepath.Join(env.LogDir, "grimoire.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
		if err != nil {
			log.Fatalf("error opening log file: %v", err)
		}
		defer logFile.Close()
	}
	initLogging(logFile)

	db := initDb(env.DatabaseUri)

	api := services.NewApi(db)
	defer api.Shutdown()

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(env),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{services.WriteAccessHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Mount("/api", api.Routes())

	if !*noFrontend {
		r.Handle("/*", frontend.Handler())
	}

	slog.Info("starting server", "port", *port)
	err := http.ListenAndServe(fmt.Sprintf(":%d", *port), r)
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
}
