package tests

import (
	"errors"
	"testing"
)

func TestRowOrdering(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	keys, _, err := c.createGrimoire("ordered")
	if err != nil {
		t.Fatal(err)
	}

	// Insert out of order, reads must come back sorted by order.
	for _, row := range []struct {
		order int
		name  string
	}{
		{2, "two"}, {0, "zero"}, {1, "one"},
	} {
		_, err := c.createRow(map[string]interface{}{
			"gid": keys.combined(), "order": row.order, "name": row.name,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	rows, _, err := c.listRows(keys.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, want := range []string{"zero", "one", "two"} {
		if rows[i]["name"] != want {
			t.Fatalf("row %d: expected %v, got %v", i, want, rows[i]["name"])
		}
	}
}

func TestRowOrderingIdTiebreak(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	keys, _, err := c.createGrimoire("ties")
	if err != nil {
		t.Fatal(err)
	}

	first, err := c.createRow(map[string]interface{}{"gid": keys.combined(), "order": 5, "name": "a"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.createRow(map[string]interface{}{"gid": keys.combined(), "order": 5, "name": "b"})
	if err != nil {
		t.Fatal(err)
	}
	if second <= first {
		t.Fatalf("row ids must be increasing: %d then %d", first, second)
	}

	rows, _, err := c.listRows(keys.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0]["name"] != "a" || rows[1]["name"] != "b" {
		t.Fatalf("equal orders must tiebreak by id: %v", rows)
	}
}

func TestRowDataRoundTrip(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	keys, _, err := c.createGrimoire("payloads")
	if err != nil {
		t.Fatal(err)
	}

	// The id, gid, and order fields of the payload are reserved and must be
	// replaced with the stored values on the way out.
	id, err := c.createRow(map[string]interface{}{
		"gid":   keys.combined(),
		"order": 3,
		"name":  "Fireball",
		"level": 3,
		"tags":  []interface{}{"fire", "aoe"},
		"id":    999999,
	})
	if err != nil {
		t.Fatal(err)
	}

	row, err := c.getRow(id)
	if err != nil {
		t.Fatal(err)
	}

	if row["name"] != "Fireball" || row["level"] != float64(3) {
		t.Fatalf("payload fields lost: %v", row)
	}
	if int64(row["id"].(float64)) != id {
		t.Fatalf("id must be the store assigned one, got %v", row["id"])
	}
	if row["gid"] != keys.PublicKey {
		t.Fatalf("gid must be the owning public key, got %v", row["gid"])
	}
	if row["order"] != float64(3) {
		t.Fatalf("order wrong: %v", row["order"])
	}
	tags, ok := row["tags"].([]interface{})
	if !ok || len(tags) != 2 || tags[0] != "fire" {
		t.Fatalf("nested payload lost: %v", row["tags"])
	}
}

func TestRowValidation(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	keys, _, err := c.createGrimoire("strict")
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.createRow(map[string]interface{}{"order": 0, "name": "x"})
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing gid must be a bad request, got %v", err)
	}

	_, err = c.createRow(map[string]interface{}{"gid": keys.combined(), "name": "x"})
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing order must be a bad request, got %v", err)
	}

	_, err = c.createRow(map[string]interface{}{"gid": keys.PublicKey, "order": 0, "name": "x"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("public key alone cannot create rows, got %v", err)
	}
}

func TestRowUpdateDiff(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	keys, _, err := c.createGrimoire("diffs")
	if err != nil {
		t.Fatal(err)
	}

	id, err := c.createRow(map[string]interface{}{
		"gid": keys.combined(), "order": 0, "name": "Fireball",
	})
	if err != nil {
		t.Fatal(err)
	}

	diff, err := c.updateRow(id, map[string]interface{}{
		"gid": keys.combined(), "order": 1, "name": "Firestorm",
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff["order"] != float64(1) || diff["name"] != "Firestorm" {
		t.Fatalf("expected changed fields in diff, got %v", diff)
	}

	// Same payload again, nothing changed.
	diff, err = c.updateRow(id, map[string]interface{}{
		"gid": keys.combined(), "order": 1, "name": "Firestorm",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(diff) != 0 {
		t.Fatalf("expected empty diff, got %v", diff)
	}

	// New fields count as changes.
	diff, err = c.updateRow(id, map[string]interface{}{
		"gid": keys.combined(), "order": 1, "name": "Firestorm", "level": 4,
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff["level"] != float64(4) {
		t.Fatalf("expected new field in diff, got %v", diff)
	}
}

func TestRowCrossContainerAccess(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	keysA, _, err := c.createGrimoire("alpha")
	if err != nil {
		t.Fatal(err)
	}
	keysB, _, err := c.createGrimoire("beta")
	if err != nil {
		t.Fatal(err)
	}

	id, err := c.createRow(map[string]interface{}{
		"gid": keysA.combined(), "order": 0, "name": "secret",
	})
	if err != nil {
		t.Fatal(err)
	}

	// A valid key for another grimoire is treated exactly like an invalid key.
	_, err = c.updateRow(id, map[string]interface{}{
		"gid": keysB.combined(), "order": 0, "name": "stolen",
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	err = c.deleteRow(id, keysB.combined())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	row, err := c.getRow(id)
	if err != nil {
		t.Fatal(err)
	}
	if row["name"] != "secret" {
		t.Fatal("row must be untouched after rejected writes")
	}
}

func TestRowDelete(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	keys, _, err := c.createGrimoire("shrinking")
	if err != nil {
		t.Fatal(err)
	}

	id, err := c.createRow(map[string]interface{}{
		"gid": keys.combined(), "order": 0, "name": "gone soon",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.deleteRow(id, keys.combined()); err != nil {
		t.Fatal(err)
	}

	_, err = c.getRow(id)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}

	rows, _, err := c.listRows(keys.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %v", rows)
	}
}

func TestListRowsAccessSignal(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newClient()

	keys, _, err := c.createGrimoire("listed")
	if err != nil {
		t.Fatal(err)
	}

	_, writeAccess, err := c.listRows(keys.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	if writeAccess {
		t.Fatal("public key alone must not signal write access")
	}

	_, writeAccess, err = c.listRows(keys.combined())
	if err != nil {
		t.Fatal(err)
	}
	if !writeAccess {
		t.Fatal("combined key must signal write access")
	}

	_, _, err = c.listRows("AAAAAAAA")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown grimoire, got %v", err)
	}
}
