package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/smallbiznis/nectar/internal/scraper"
	storedomain "github.com/smallbiznis/nectar/internal/store/domain"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	status, payload := mapError(scraper.ErrAlreadyRunning)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", payload.Type)
	assert.Equal(t, "scraper is already running", payload.Message)

	status, payload = mapError(storedomain.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", payload.Type)

	status, payload = mapError(storedomain.ErrInvalidID)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", payload.Type)

	status, payload = mapError(errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", payload.Type)
}

func TestMapErrorDuplicateKeyIsConflict(t *testing.T) {
	status, payload := mapError(fmt.Errorf("save store: %w", gorm.ErrDuplicatedKey))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", payload.Type)
	assert.Equal(t, "conflict", payload.Message)

	status, _ = mapError(errors.New("UNIQUE constraint failed: coupon_usage_reports.id"))
	assert.Equal(t, http.StatusConflict, status)
}
