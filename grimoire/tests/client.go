package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	json     interface{}
	body     io.Reader

	writeAccess *bool
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
	}
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

func (r *httpTestRequest) WriteAccess(dest *bool) *httpTestRequest {
	r.writeAccess = dest
	return r
}

// response body will be parsed into result, passing nil indicates that no result is expected.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.json != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if r.writeAccess != nil {
		*r.writeAccess = res.Header.Get("Grimoire-Write-Access") == "true"
	}

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		switch res.StatusCode {
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %v", ErrBadRequest, w.Body.String())
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrUnauthorized, w.Body.String())
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, w.Body.String())
		}
		return fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing response from endpoint %v: %w", r.endpoint, err)
		}
	}

	return nil
}

type client struct {
	api http.Handler
}

func (c *client) Get(endpoint string) *httpTestRequest {
	return newHttpTestRequest(c.api, "GET", endpoint)
}

func (c *client) Post(endpoint string) *httpTestRequest {
	return newHttpTestRequest(c.api, "POST", endpoint)
}

func (c *client) Put(endpoint string) *httpTestRequest {
	return newHttpTestRequest(c.api, "PUT", endpoint)
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	return newHttpTestRequest(c.api, "DELETE", endpoint)
}

type keyPair struct {
	PublicKey string `json:"public_key"`
	AdminKey  string `json:"admin_key"`
}

func (k keyPair) combined() string {
	return k.PublicKey + k.AdminKey
}

type grimoireInfo struct {
	PublicKey  string                   `json:"public_key"`
	AdminKey   string                   `json:"admin_key"`
	Name       string                   `json:"name"`
	LastViewed time.Time                `json:"last_viewed"`
	Rows       []map[string]interface{} `json:"rows"`
}

func (c *client) createGrimoire(name string) (keyPair, bool, error) {
	var keys keyPair
	var writeAccess bool
	err := c.Post("/grimoire").Json(map[string]string{"name": name}).WriteAccess(&writeAccess).Do(&keys)
	return keys, writeAccess, err
}

func (c *client) getGrimoire(key string) (grimoireInfo, bool, error) {
	var info grimoireInfo
	var writeAccess bool
	err := c.Get("/grimoire/" + key).WriteAccess(&writeAccess).Do(&info)
	return info, writeAccess, err
}

func (c *client) updateGrimoire(key, name string) (map[string]interface{}, error) {
	diff := map[string]interface{}{}
	err := c.Put("/grimoire/" + key).Json(map[string]string{"name": name}).Do(&diff)
	return diff, err
}

func (c *client) deleteGrimoire(key string) error {
	return c.Delete("/grimoire/" + key).Do(nil)
}

func (c *client) checkAuth(key string) (bool, error) {
	var res struct {
		Authorized bool `json:"authorized"`
	}
	err := c.Get("/auth/" + key).Do(&res)
	return res.Authorized, err
}

func (c *client) listRows(key string) ([]map[string]interface{}, bool, error) {
	var rows []map[string]interface{}
	var writeAccess bool
	err := c.Get("/rows/" + key).WriteAccess(&writeAccess).Do(&rows)
	return rows, writeAccess, err
}

func (c *client) createRow(body map[string]interface{}) (int64, error) {
	var res struct {
		Id int64 `json:"id"`
	}
	err := c.Post("/row").Json(body).Do(&res)
	return res.Id, err
}

func (c *client) getRow(id int64) (map[string]interface{}, error) {
	row := map[string]interface{}{}
	err := c.Get(fmt.Sprintf("/row/%d", id)).Do(&row)
	return row, err
}

func (c *client) updateRow(id int64, body map[string]interface{}) (map[string]interface{}, error) {
	diff := map[string]interface{}{}
	err := c.Put(fmt.Sprintf("/row/%d", id)).Json(body).Do(&diff)
	return diff, err
}

func (c *client) deleteRow(id int64, gid string) error {
	return c.Delete(fmt.Sprintf("/row/%d?gid=%v", id, gid)).Do(nil)
}
