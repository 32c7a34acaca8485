package apierror

import (
	"errors"
	"net/http"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorMessage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "NOT_FOUND: user not found", New("NOT_FOUND", "user not found", "", http.StatusNotFound).Error())
	require.Equal(t, "BAD_REQUEST: bad (id)", BadRequest("bad", "id").Error())

	var nilErr *APIError
	require.Equal(t, "", nilErr.Error())
}

func TestFromValidation(t *testing.T) {
	t.Parallel()

	t.Run("nil stays nil", func(t *testing.T) {
		require.NoError(t, FromValidation(nil))
	})

	t.Run("flattens field errors in key order", func(t *testing.T) {
		err := FromValidation(validation.Errors{
			"username": errors.New("cannot be blank"),
			"email":    errors.New("must be a valid email address"),
		})

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnprocessableEntity, apiErr.HTTPStatus)
		require.Equal(t, "email: must be a valid email address; username: cannot be blank", apiErr.Details)
	})

	t.Run("plain errors keep their text", func(t *testing.T) {
		var apiErr *APIError
		require.ErrorAs(t, FromValidation(errors.New("boom")), &apiErr)
		require.Equal(t, "boom", apiErr.Details)
	})
}
