package tests

import (
	"testing"

	"grimoire/grimoire/schema"
	"grimoire/grimoire/services"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	api chi.Router
	db  *gorm.DB
}

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(&schema.Grimoire{}, &schema.Row{})
	if err != nil {
		t.Fatal(err)
	}

	api := services.NewApi(db)
	t.Cleanup(api.Shutdown)

	return &testEnv{api: api.Routes(), db: db}
}

func (t *testEnv) newClient() client {
	return client{api: t.api}
}
