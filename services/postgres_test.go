package services

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/folio-gate/gate_api/shared"
)

func TestHandleErrorMapsStorageErrors(t *testing.T) {
	svc := &PostgresService{}

	assert.NoError(t, svc.HandleError(nil))

	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"record not found", gorm.ErrRecordNotFound, http.StatusNotFound},
		{"duplicated key", gorm.ErrDuplicatedKey, http.StatusConflict},
		{"foreign key violated", gorm.ErrForeignKeyViolated, http.StatusBadRequest},
		{"postgres unique violation", errors.New(`duplicate key value violates unique constraint "idx_reflinks_code"`), http.StatusConflict},
		{"sqlite unique violation", errors.New("UNIQUE constraint failed: reflinks.code"), http.StatusConflict},
		{"unknown", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := svc.HandleError(tc.err)
			appErr, ok := shared.GetAppError(mapped)
			require.True(t, ok)
			assert.Equal(t, tc.wantStatus, appErr.StatusCode)
			assert.ErrorIs(t, mapped, tc.err)
		})
	}
}
