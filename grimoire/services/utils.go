package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"grimoire/grimoire/schema"
	"grimoire/utils"

	"gorm.io/gorm"
)

// WriteAccessHeader signals to the client whether its credentials grant
// mutation rights on the resource in the response.
const WriteAccessHeader = "Grimoire-Write-Access"

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	utils.WriteJsonError(w, GetResponseCode(err), err.Error())
}

func grantWriteAccess(w http.ResponseWriter) {
	w.Header().Set(WriteAccessHeader, "true")
}

var errNotAuthorized = errors.New("Not Authorized")

// touchLastViewed records read activity on a grimoire. Any read, public or
// admin, counts.
func touchLastViewed(db *gorm.DB, publicKey string) {
	result := db.Model(&schema.Grimoire{}).
		Where("public_key = ?", publicKey).
		Update("last_viewed", time.Now().UTC())
	if result.Error != nil {
		slog.Error("sql error updating last viewed", "public_key", publicKey, "error", result.Error)
	}
}

// encodeRowData serializes a caller supplied row payload, dropping the store
// assigned keys so they cannot be smuggled in through the body.
func encodeRowData(body map[string]interface{}) (string, error) {
	data := make(map[string]interface{}, len(body))
	for key, value := range body {
		if schema.IsReservedRowKey(key) {
			continue
		}
		data[key] = value
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		slog.Error("error serializing row data", "error", err)
		return "", CodedError(errors.New("error serializing row data"), http.StatusInternalServerError)
	}
	return string(encoded), nil
}

func decodeRowData(row schema.Row) (map[string]interface{}, error) {
	data := map[string]interface{}{}
	if row.Data != "" {
		if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
			slog.Error("error deserializing row data", "row_id", row.Id, "error", err)
			return nil, CodedError(fmt.Errorf("error deserializing row %v", row.Id), http.StatusInternalServerError)
		}
	}
	return data, nil
}

// flattenRow merges the stored payload with the store assigned id for list
// responses.
func flattenRow(row schema.Row) (map[string]interface{}, error) {
	data, err := decodeRowData(row)
	if err != nil {
		return nil, err
	}
	data["id"] = row.Id
	return data, nil
}

func checkGrimoireExists(txn *gorm.DB, publicKey string) error {
	if _, err := schema.GetGrimoire(publicKey, txn); err != nil {
		if errors.Is(err, schema.ErrGrimoireNotFound) {
			return CodedError(fmt.Errorf("No such record as %v", publicKey), http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}
