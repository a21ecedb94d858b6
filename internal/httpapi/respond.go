package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
	"github.com/LuisFaxas/faxas-property-sub000/internal/obs"
	"github.com/LuisFaxas/faxas-property-sub000/internal/scoped"
)

// envelope is the uniform response shape. Exactly one of Data and Error is
// set; Success always tells the client which.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeSuccess(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, envelope{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON parses a request body strictly: unknown fields and trailing
// data are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// translateError maps domain errors onto the response envelope. Status
// bodies never echo internal detail: message text is fixed per class, and
// unclassified errors collapse to a generic 500.
func translateError(w http.ResponseWriter, err error) {
	var verr *auth.VerifyError
	switch {
	case errors.As(err, &verr), errors.Is(err, auth.ErrPrincipalNotFound), errors.Is(err, auth.ErrPrincipalDeactivated):
		writeError(w, http.StatusUnauthorized, "Authentication failed")
	case errors.Is(err, auth.ErrNotAMember):
		writeError(w, http.StatusForbidden, "Not a member of this project")
	case errors.Is(err, auth.ErrInsufficientRolePrivilege):
		writeError(w, http.StatusForbidden, "Insufficient role privileges")
	case errors.Is(err, auth.ErrInsufficientPermission):
		writeError(w, http.StatusForbidden, "Insufficient permissions")
	case errors.Is(err, auth.ErrNoModuleAccess):
		writeError(w, http.StatusForbidden, "No access to this module")
	case errors.Is(err, scoped.ErrOwnershipViolation):
		obs.ObserveOwnershipViolation()
		writeError(w, http.StatusForbidden, "Access to this record is denied")
	case errors.Is(err, scoped.ErrNotFound):
		writeError(w, http.StatusNotFound, "Record not found")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, http.StatusConflict, "Record already exists")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Invalid request")
	default:
		obs.LogRequest(map[string]any{
			"level": "error",
			"msg":   "request failed",
			"error": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
