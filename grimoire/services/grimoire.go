package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"grimoire/grimoire/auth"
	"grimoire/grimoire/keygen"
	"grimoire/grimoire/ratelimit"
	"grimoire/grimoire/schema"
	"grimoire/utils"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type GrimoireService struct {
	db      *gorm.DB
	limiter *ratelimit.Limiter
}

func (s *GrimoireService) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(s.limiter.Middleware).Post("/", s.Create)

	r.Route("/{key}", func(r chi.Router) {
		r.Get("/", s.Read)
		r.Put("/", s.Update)
		r.Delete("/", s.Delete)
	})

	return r
}

type createGrimoireRequest struct {
	Name string `json:"name"`
}

type createGrimoireResponse struct {
	PublicKey string `json:"public_key"`
	AdminKey  string `json:"admin_key"`
}

func (s *GrimoireService) Create(w http.ResponseWriter, r *http.Request) {
	var params createGrimoireRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var res createGrimoireResponse

	err := s.db.Transaction(func(txn *gorm.DB) error {
		publicKey, adminKey, err := keygen.NewKeyPair(func(key string) (bool, error) {
			var count int64
			result := txn.Model(&schema.Grimoire{}).Where("public_key = ?", key).Count(&count)
			if result.Error != nil {
				slog.Error("sql error checking public key collision", "error", result.Error)
				return false, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
			return count > 0, nil
		})
		if err != nil {
			if errors.Is(err, keygen.ErrAllocationExhausted) {
				slog.Error("public key allocation exhausted")
				return CodedError(errors.New("Failed to create new ID"), http.StatusInternalServerError)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		grim := schema.Grimoire{
			PublicKey:  publicKey,
			AdminKey:   adminKey,
			Name:       params.Name,
			LastViewed: time.Now().UTC(),
		}

		result := txn.Create(&grim)
		if result.Error != nil {
			slog.Error("sql error creating new grimoire", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected < 1 {
			return CodedError(errors.New("SQL Failed insert"), http.StatusInternalServerError)
		}

		res.PublicKey = publicKey
		res.AdminKey = adminKey
		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("created grimoire", "public_key", res.PublicKey)

	grantWriteAccess(w)
	utils.WriteJsonResponseStatus(w, http.StatusCreated, res)
}

type grimoireResponse struct {
	PublicKey  string                   `json:"public_key"`
	AdminKey   string                   `json:"admin_key,omitempty"`
	Name       string                   `json:"name"`
	LastViewed time.Time                `json:"last_viewed"`
	Rows       []map[string]interface{} `json:"rows"`
}

func (s *GrimoireService) Read(w http.ResponseWriter, r *http.Request) {
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

	grim, err := schema.GetGrimoire(key.Public, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrGrimoireNotFound) {
			utils.WriteJsonError(w, http.StatusNotFound, fmt.Sprintf("No such record as %v", key.Public))
			return
		}
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	touchLastViewed(s.db, key.Public)

	rows, err := schema.ListRows(key.Public, s.db)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	res := grimoireResponse{
		PublicKey:  grim.PublicKey,
		Name:       grim.Name,
		LastViewed: grim.LastViewed,
		Rows:       make([]map[string]interface{}, 0, len(rows)),
	}
	if authorized {
		// Only the holder of the admin key gets to see it again.
		res.AdminKey = grim.AdminKey
	}

	for _, row := range rows {
		flat, err := flattenRow(row)
		if err != nil {
			writeError(w, err)
			return
		}
		res.Rows = append(res.Rows, flat)
	}

	if authorized {
		grantWriteAccess(w)
	}
	utils.WriteJsonResponse(w, res)
}

type updateGrimoireRequest struct {
	Name string `json:"name"`
}

func (s *GrimoireService) Update(w http.ResponseWriter, r *http.Request) {
	rawKey, err := utils.URLParam(r, "key")
	if err != nil {
		utils.WriteJsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	var params updateGrimoireRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	key := auth.ParseKey(rawKey)

	diff := map[string]interface{}{}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		authorized, err := key.IsAuthorized(txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if !authorized {
			return CodedError(errNotAuthorized, http.StatusForbidden)
		}

		touchLastViewed(txn, key.Public)

		grim, err := schema.GetGrimoire(key.Public, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if grim.Name != params.Name {
			diff["name"] = params.Name
		}

		result := txn.Model(&schema.Grimoire{}).Where("public_key = ?", key.Public).Update("name", params.Name)
		if result.Error != nil {
			slog.Error("sql error updating grimoire name", "public_key", key.Public, "error", result.Error)
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

type deleteGrimoireResponse struct {
	PublicKey string `json:"public_key"`
}

// Delete removes a grimoire and every row it owns. The cascade is explicit
// so no orphaned row is reachable afterward regardless of database support
// for foreign key enforcement.
func (s *GrimoireService) Delete(w http.ResponseWriter, r *http.Request) {
	rawKey, err := utils.URLParam(r, "key")
	if err != nil {
		utils.WriteJsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := auth.ParseKey(rawKey)

	err = s.db.Transaction(func(txn *gorm.DB) error {
		authorized, err := key.IsAuthorized(txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if !authorized {
			return CodedError(errNotAuthorized, http.StatusForbidden)
		}

		result := txn.Where("gid = ?", key.Public).Delete(&schema.Row{})
		if result.Error != nil {
			slog.Error("sql error deleting grimoire rows", "public_key", key.Public, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.Grimoire{PublicKey: key.Public})
		if result.Error != nil {
			slog.Error("sql error deleting grimoire", "public_key", key.Public, "error", result.Error)
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

	slog.Info("deleted grimoire", "public_key", key.Public)

	utils.WriteJsonResponse(w, deleteGrimoireResponse{PublicKey: key.Public})
}
