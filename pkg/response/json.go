package response

import (
	"encoding/json"
	"net/http"
)

func JSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// Error writes err as a Resp body with the status ParseHTTPError picks.
func Error(w http.ResponseWriter, err error) error {
	statusCode, body := ParseHTTPError(err)
	return JSON(w, statusCode, body)
}
