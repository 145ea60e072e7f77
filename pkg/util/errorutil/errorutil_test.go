package errorutil

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"domain error", NewTransitionDenied("no rule permits this transition", nil), CodeTransitionDenied, http.StatusForbidden},
		{"note required", NewNoteRequired(nil), CodeNoteRequired, http.StatusUnprocessableEntity},
		{"wrapped no rows", fmt.Errorf("get ticket: %w", pgx.ErrNoRows), "NOT_FOUND", http.StatusNotFound},
		{"fiber error", fiber.NewError(http.StatusForbidden, "insufficient role"), "FORBIDDEN", http.StatusForbidden},
		{"unknown", fmt.Errorf("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			de := ToDomainError(tc.err)
			assert.Equal(t, tc.code, de.Code)
			assert.Equal(t, tc.status, de.HTTPStatus)
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	assert.NoError(t, MapError(nil))
	assert.Nil(t, ToDomainError(nil))
}
