package client

import (
	"net/http/httptest"
	"testing"

	"grimoire/grimoire/schema"
	"grimoire/grimoire/services"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func startTestServer(t *testing.T) *GrimoireClient {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&schema.Grimoire{}, &schema.Row{}))

	api := services.NewApi(db)
	t.Cleanup(api.Shutdown)

	r := chi.NewRouter()
	r.Mount("/api", api.Routes())

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return New(server.URL)
}

func TestGrimoireClient(t *testing.T) {
	c := startTestServer(t)

	keys, err := c.CreateGrimoire("Wizard Spells")
	require.NoError(t, err)
	assert.Len(t, keys.PublicKey, 8)
	assert.Len(t, keys.AdminKey, 16)

	authorized, err := c.CheckAuth(keys.Combined())
	require.NoError(t, err)
	assert.True(t, authorized)

	authorized, err = c.CheckAuth(keys.PublicKey)
	require.NoError(t, err)
	assert.False(t, authorized)

	info, err := c.GetGrimoire(keys.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, "Wizard Spells", info.Name)
	assert.Empty(t, info.AdminKey)
	assert.False(t, info.WriteAccess)

	info, err = c.GetGrimoire(keys.Combined())
	require.NoError(t, err)
	assert.Equal(t, keys.AdminKey, info.AdminKey)
	assert.True(t, info.WriteAccess)

	id, err := c.CreateRow(keys.Combined(), 0, map[string]interface{}{"name": "Fireball"})
	require.NoError(t, err)

	rows, writeAccess, err := c.ListRows(keys.Combined())
	require.NoError(t, err)
	assert.True(t, writeAccess)
	require.Len(t, rows, 1)
	assert.Equal(t, "Fireball", rows[0]["name"])

	diff, err := c.UpdateRow(id, keys.Combined(), 1, map[string]interface{}{"name": "Firestorm"})
	require.NoError(t, err)
	assert.Equal(t, "Firestorm", diff["name"])
	assert.Equal(t, float64(1), diff["order"])

	row, err := c.GetRow(id)
	require.NoError(t, err)
	assert.Equal(t, "Firestorm", row["name"])
	assert.Equal(t, keys.PublicKey, row["gid"])

	diff, err = c.UpdateGrimoireName(keys.Combined(), "Sorcery")
	require.NoError(t, err)
	assert.Equal(t, "Sorcery", diff["name"])

	require.NoError(t, c.DeleteRow(id, keys.Combined()))

	rows, _, err = c.ListRows(keys.PublicKey)
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, c.DeleteGrimoire(keys.Combined()))

	_, err = c.GetGrimoire(keys.PublicKey)
	assert.Error(t, err)
}

func TestUnauthorizedWrites(t *testing.T) {
	c := startTestServer(t)

	keys, err := c.CreateGrimoire("locked")
	require.NoError(t, err)

	_, err = c.UpdateGrimoireName(keys.PublicKey, "renamed")
	assert.Error(t, err)

	_, err = c.CreateRow(keys.PublicKey, 0, map[string]interface{}{"name": "x"})
	assert.Error(t, err)

	assert.Error(t, c.DeleteGrimoire(keys.PublicKey))
}
