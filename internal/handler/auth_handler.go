package handler

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"techtrack/internal/middleware"
	"techtrack/internal/model"
	"techtrack/internal/service"
	"techtrack/pkg/apierror"
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Login accepts the credentials as JSON or as an OAuth2 password form.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	payload, err := readLoginRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.service.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}

// TestToken echoes the user behind the bearer token.
func (h *AuthHandler) TestToken(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func readLoginRequest(w http.ResponseWriter, r *http.Request) (model.LoginRequest, error) {
	var payload model.LoginRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return payload, apierror.BadRequest("invalid form body", err.Error())
		}
		payload.Username = r.PostFormValue("username")
		payload.Password = r.PostFormValue("password")
	default:
		if err := decodeJSON(w, r, &payload); err != nil {
			return payload, err
		}
	}

	payload.Username = strings.TrimSpace(payload.Username)

	err := validation.ValidateStruct(&payload,
		validation.Field(&payload.Username, validation.Required),
		validation.Field(&payload.Password, validation.Required),
	)
	return payload, apierror.FromValidation(err)
}
