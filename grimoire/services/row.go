package services

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"

	"grimoire/grimoire/auth"
	"grimoire/grimoire/schema"
	"grimoire/utils"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type RowService struct {
	db *gorm.DB
}

func (s *RowService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", s.Create)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", s.Read)
		r.Put("/", s.Update)
		r.Delete("/", s.Delete)
	})

	return r
}

// rowRequest is the caller supplied body for row writes: the combined key,
// the row's position, and an arbitrary payload in the remaining fields.
type rowRequest struct {
	gid   string
	order int
	body  map[string]interface{}
}

func parseRowRequest(w http.ResponseWriter, r *http.Request) (rowRequest, bool) {
	var body map[string]interface{}
	if !utils.ParseRequestBody(w, r, &body) {
		return rowRequest{}, false
	}

	gid, _ := body["gid"].(string)
	if gid == "" {
		utils.WriteJsonError(w, http.StatusBadRequest, "No Grimoire ID given")
		return rowRequest{}, false
	}

	orderValue, ok := body["order"]
	if !ok {
		utils.WriteJsonError(w, http.StatusBadRequest, "No Row ID given")
		return rowRequest{}, false
	}
	order, ok := orderValue.(float64)
	if !ok {
		utils.WriteJsonError(w, http.StatusBadRequest, "Not a valid row order given")
		return rowRequest{}, false
	}

	return rowRequest{gid: gid, order: int(order), body: body}, true
}

// authorizeRow checks the combined key inside a transaction. Failures are
// always reported as Not Authorized so a guessed key learns nothing.
func authorizeRow(txn *gorm.DB, gid string) (auth.CombinedKey, error) {
	key := auth.ParseKey(gid)

	authorized, err := key.IsAuthorized(txn)
	if err != nil {
		return key, CodedError(err, http.StatusInternalServerError)
	}
	if !authorized {
		return key, CodedError(errNotAuthorized, http.StatusForbidden)
	}

	return key, nil
}

// checkRowOwnership verifies the row belongs to the authorized grimoire. A
// row owned by another grimoire reports Not Authorized rather than not
// found, so existence does not leak across containers.
func checkRowOwnership(txn *gorm.DB, rowId int64, publicKey string) error {
	var count int64
	result := txn.Model(&schema.Row{}).Where("id = ? AND gid = ?", rowId, publicKey).Count(&count)
	if result.Error != nil {
		slog.Error("sql error checking row ownership", "row_id", rowId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	if count == 0 {
		return CodedError(errNotAuthorized, http.StatusForbidden)
	}
	return nil
}

type createRowResponse struct {
	Id int64 `json:"id"`
}

func (s *RowService) Create(w http.ResponseWriter, r *http.Request) {
	params, ok := parseRowRequest(w, r)
	if !ok {
		return
	}

	var row schema.Row

	err := s.db.Transaction(func(txn *gorm.DB) error {
		key, err := authorizeRow(txn, params.gid)
		if err != nil {
			return err
		}

		touchLastViewed(txn, key.Public)

		data, err := encodeRowData(params.body)
		if err != nil {
			return err
		}

		row = schema.Row{Gid: key.Public, Order: params.order, Data: data}
		result := txn.Create(&row)
		if result.Error != nil {
			slog.Error("sql error creating new row", "public_key", key.Public, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected < 1 {
			return CodedError(errors.New("SQL Failed insert"), http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponseStatus(w, http.StatusCreated, createRowResponse{Id: row.Id})
}

func (s *RowService) Read(w http.ResponseWriter, r *http.Request) {
	rowId, err := utils.URLParamInt(r, "id")
	if err != nil {
		utils.WriteJsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	row, err := schema.GetRow(rowId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrRowNotFound) {
			utils.WriteJsonError(w, http.StatusNotFound, "No such row")
			return
		}
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	touchLastViewed(s.db, row.Gid)

	res, err := flattenRow(row)
	if err != nil {
		writeError(w, err)
		return
	}
	res["gid"] = row.Gid
	res["order"] = row.Order

	utils.WriteJsonResponse(w, res)
}

func (s *RowService) Update(w http.ResponseWriter, r *http.Request) {
	rowId, err := utils.URLParamInt(r, "id")
	if err != nil {
		utils.WriteJsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	params, ok := parseRowRequest(w, r)
	if !ok {
		return
	}

	diff := map[string]interface{}{}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		key, err := authorizeRow(txn, params.gid)
		if err != nil {
			return err
		}

		if err := checkRowOwnership(txn, rowId, key.Public); err != nil {
			return err
		}

		touchLastViewed(txn, key.Public)

		existing, err := schema.GetRow(rowId, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		existingData, err := decodeRowData(existing)
		if err != nil {
			return err
		}

		if existing.Order != params.order {
			diff["order"] = params.order
		}
		for key, value := range params.body {
			if schema.IsReservedRowKey(key) {
				continue
			}
			if old, ok := existingData[key]; !ok || !reflect.DeepEqual(old, value) {
				diff[key] = value
			}
		}

		data, err := encodeRowData(params.body)
		if err != nil {
			return err
		}

		result := txn.Model(&schema.Row{}).Where("id = ?", rowId).
			Updates(map[string]interface{}{"order": params.order, "data": data})
		if result.Error != nil {
			slog.Error("sql error updating row", "row_id", rowId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected < 1 {
			return CodedError(errors.New("SQL Failed update"), http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, diff)
}

type deleteRowRequest struct {
	Gid string `json:"gid"`
}

type deleteRowResponse struct {
	Id int64 `json:"id"`
}

func (s *RowService) Delete(w http.ResponseWriter, r *http.Request) {
	rowId, err := utils.URLParamInt(r, "id")
	if err != nil {
		utils.WriteJsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The key can arrive as a query param or in the body; DELETE bodies are
	// dropped by some proxies.
	gid := r.URL.Query().Get("gid")
	if gid == "" && r.Body != nil {
		var params deleteRowRequest
		if !utils.ParseRequestBody(w, r, &params) {
			return
		}
		gid = params.Gid
	}
	if gid == "" {
		utils.WriteJsonError(w, http.StatusBadRequest, "No Grimoire ID given")
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		key, err := authorizeRow(txn, gid)
		if err != nil {
			return err
		}

		if err := checkRowOwnership(txn, rowId, key.Public); err != nil {
			return err
		}

		result := txn.Delete(&schema.Row{Id: rowId})
		if result.Error != nil {
			slog.Error("sql error deleting row", "row_id", rowId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected < 1 {
			return CodedError(errors.New("SQL Failed delete"), http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, deleteRowResponse{Id: rowId})
}

// List returns just the ordered rows of a grimoire, without the container
// metadata, for the lightweight refresh path.
func (s *RowService) List(w http.ResponseWriter, r *http.Request) {
	rawKey, err := utils.URLParam(r, "key")
	if err != nil {
		utils.WriteJsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := auth.ParseKey(rawKey)
	authorized, err := key.IsAuthorized(s.db)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	if err := checkGrimoireExists(s.db, key.Public); err != nil {
		writeError(w, err)
		return
	}

	touchLastViewed(s.db, key.Public)

	rows, err := schema.ListRows(key.Public, s.db)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	res := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		flat, err := flattenRow(row)
		if err != nil {
			writeError(w, err)
			return
		}
		res = append(res, flat)
	}

	if authorized {
		grantWriteAccess(w)
	}
	utils.WriteJsonResponse(w, res)
}
