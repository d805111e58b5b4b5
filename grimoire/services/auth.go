package services

import (
	"net/http"

	"grimoire/grimoire/auth"
	"grimoire/utils"

	"gorm.io/gorm"
)

type AuthService struct {
	db *gorm.DB
}

type authResponse struct {
	Authorized bool `json:"authorized"`
}

// Probe reports whether a candidate combined key grants write access. It
// performs no other action; in particular it does not touch last_viewed, so
// clients can poll it freely.
func (s *AuthService) Probe(w http.ResponseWriter, r *http.Request) {
	key, err := utils.URLParam(r, "key")
	if err != nil {
		utils.WriteJsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	authorized, err := auth.IsAuthorized(key, s.db)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	if authorized {
		grantWriteAccess(w)
	}
	utils.WriteJsonResponse(w, authResponse{Authorized: authorized})
}
