package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorResponse(t *testing.T) {
	assert.Equal(t, ErrorResponse{Error: "session expired"}, NewErrorResponse(errors.New("session expired")))
	assert.Equal(t, ErrorResponse{Error: UnknownError}, NewErrorResponse(errors.New("")))
	assert.Equal(t, ErrorResponse{Error: UnknownError}, NewErrorResponse(errors.New("  ")))
	assert.Equal(t, ErrorResponse{Error: UnknownError}, NewErrorResponse(nil))
}
