package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"techtrack/internal/model"
	"techtrack/internal/security"
	"techtrack/pkg/apierror"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := model.ErrorResponse{
		Code:   "INTERNAL_ERROR",
		Detail: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Detail = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.Is(err, model.ErrInvalidCredentials) {
		status = http.StatusUnauthorized
		body.Code = "INVALID_CREDENTIALS"
		body.Detail = "Incorrect username or password"
		w.Header().Set("WWW-Authenticate", "Bearer")
	} else if errors.Is(err, model.ErrInactiveUser) {
		status = http.StatusBadRequest
		body.Code = "INACTIVE_USER"
		body.Detail = "Inactive user"
	} else if errors.Is(err, security.ErrInvalidToken) || errors.Is(err, model.ErrUnauthorized) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Detail = "Could not validate credentials"
		w.Header().Set("WWW-Authenticate", "Bearer")
	} else if errors.Is(err, model.ErrDuplicateUser) {
		status = http.StatusConflict
		body.Code = "DUPLICATE_USER"
		body.Detail = "The user with this username or email already exists"
		body.Details = duplicateDetails(err)
	} else if errors.Is(err, model.ErrUserNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Detail = "User not found"
	} else if errors.Is(err, model.ErrForbidden) {
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Detail = "The user doesn't have enough privileges"
	} else {
		slog.ErrorContext(r.Context(), "unhandled error in writeError", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	}

	writeJSON(w, status, body)
}

// duplicateDetails keeps the part after the sentinel, e.g. `email "bob@x.com" is taken`.
func duplicateDetails(err error) string {
	_, details, found := strings.Cut(err.Error(), model.ErrDuplicateUser.Error()+": ")
	if !found {
		return ""
	}
	return details
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierror.New("BODY_TOO_LARGE", "request body too large", "", http.StatusRequestEntityTooLarge)
		}
		return apierror.BadRequest("invalid JSON body", err.Error())
	}

	return nil
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest("invalid user id", raw)
	}

	return id, nil
}
