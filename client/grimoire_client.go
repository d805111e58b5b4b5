// Package client provides a Go client for the grimoire REST API.
package client

import (
	"fmt"
	"time"
)

type GrimoireClient struct {
	baseUrl string
}

func New(baseUrl string) *GrimoireClient {
	return &GrimoireClient{baseUrl: baseUrl}
}

func (c *GrimoireClient) get(endpoint string) *httpRequest {
	return newHttpRequest("GET", c.baseUrl, endpoint)
}

func (c *GrimoireClient) post(endpoint string) *httpRequest {
	return newHttpRequest("POST", c.baseUrl, endpoint)
}

func (c *GrimoireClient) put(endpoint string) *httpRequest {
	return newHttpRequest("PUT", c.baseUrl, endpoint)
}

func (c *GrimoireClient) delete(endpoint string) *httpRequest {
	return newHttpRequest("DELETE", c.baseUrl, endpoint)
}

type KeyPair struct {
	PublicKey string `json:"public_key"`
	AdminKey  string `json:"admin_key"`
}

// Combined returns the single string that proves write access.
func (k KeyPair) Combined() string {
	return k.PublicKey + k.AdminKey
}

// CreateGrimoire makes a new grimoire and returns its key pair. The admin
// key is only ever returned here and on authorized reads; lose it and the
// grimoire is read only forever.
func (c *GrimoireClient) CreateGrimoire(name string) (KeyPair, error) {
	var res KeyPair
	err := c.post("/api/grimoire").Json(map[string]string{"name": name}).Do(&res)
	if err != nil {
		return KeyPair{}, fmt.Errorf("error creating grimoire: %w", err)
	}
	return res, nil
}

// CheckAuth probes whether key grants write access, without any side
// effects.
func (c *GrimoireClient) CheckAuth(key string) (bool, error) {
	var res struct {
		Authorized bool `json:"authorized"`
	}
	err := c.get("/api/auth/" + key).Do(&res)
	if err != nil {
		return false, fmt.Errorf("error checking authorization: %w", err)
	}
	return res.Authorized, nil
}

type GrimoireInfo struct {
	PublicKey  string                   `json:"public_key"`
	AdminKey   string                   `json:"admin_key,omitempty"`
	Name       string                   `json:"name"`
	LastViewed time.Time                `json:"last_viewed"`
	Rows       []map[string]interface{} `json:"rows"`

	// WriteAccess mirrors the server's write-access response signal.
	WriteAccess bool `json:"-"`
}

// GetGrimoire fetches a grimoire and its ordered rows. With an 8 character
// key the response omits the admin key; with a valid 24 character key it is
// included and WriteAccess is set.
func (c *GrimoireClient) GetGrimoire(key string) (GrimoireInfo, error) {
	var res GrimoireInfo
	err := c.get("/api/grimoire/" + key).WriteAccess(&res.WriteAccess).Do(&res)
	if err != nil {
		return GrimoireInfo{}, fmt.Errorf("error getting grimoire: %w", err)
	}
	return res, nil
}

// UpdateGrimoireName renames a grimoire. The returned diff contains the
// fields that actually changed.
func (c *GrimoireClient) UpdateGrimoireName(key, name string) (map[string]interface{}, error) {
	diff := map[string]interface{}{}
	err := c.put("/api/grimoire/" + key).Json(map[string]string{"name": name}).Do(&diff)
	if err != nil {
		return nil, fmt.Errorf("error updating grimoire: %w", err)
	}
	return diff, nil
}

func (c *GrimoireClient) DeleteGrimoire(key string) error {
	err := c.delete("/api/grimoire/" + key).Do(nil)
	if err != nil {
		return fmt.Errorf("error deleting grimoire: %w", err)
	}
	return nil
}

// ListRows fetches just the ordered rows of a grimoire. The second return
// reports whether key granted write access.
func (c *GrimoireClient) ListRows(key string) ([]map[string]interface{}, bool, error) {
	var rows []map[string]interface{}
	var writeAccess bool
	err := c.get("/api/rows/" + key).WriteAccess(&writeAccess).Do(&rows)
	if err != nil {
		return nil, false, fmt.Errorf("error listing rows: %w", err)
	}
	return rows, writeAccess, nil
}

// CreateRow adds a row. gid must be the combined 24 character key; data
// holds the caller defined payload.
func (c *GrimoireClient) CreateRow(gid string, order int, data map[string]interface{}) (int64, error) {
	body := map[string]interface{}{"gid": gid, "order": order}
	for key, value := range data {
		body[key] = value
	}

	var res struct {
		Id int64 `json:"id"`
	}
	err := c.post("/api/row").Json(body).Do(&res)
	if err != nil {
		return 0, fmt.Errorf("error creating row: %w", err)
	}
	return res.Id, nil
}

func (c *GrimoireClient) GetRow(id int64) (map[string]interface{}, error) {
	row := map[string]interface{}{}
	err := c.get(fmt.Sprintf("/api/row/%d", id)).Do(&row)
	if err != nil {
		return nil, fmt.Errorf("error getting row: %w", err)
	}
	return row, nil
}

func (c *GrimoireClient) UpdateRow(id int64, gid string, order int, data map[string]interface{}) (map[string]interface{}, error) {
	body := map[string]interface{}{"gid": gid, "order": order}
	for key, value := range data {
		body[key] = value
	}

	diff := map[string]interface{}{}
	err := c.put(fmt.Sprintf("/api/row/%d", id)).Json(body).Do(&diff)
	if err != nil {
		return nil, fmt.Errorf("error updating row: %w", err)
	}
	return diff, nil
}

func (c *GrimoireClient) DeleteRow(id int64, gid string) error {
	err := c.delete(fmt.Sprintf("/api/row/%d", id)).Param("gid", gid).Do(nil)
	if err != nil {
		return fmt.Errorf("error deleting row: %w", err)
	}
	return nil
}
