package domainerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(context.DeadlineExceeded, CodePersistence, "store timed out")

	assert.True(t, Is(err, CodePersistence))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "store timed out: context deadline exceeded", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
}

func TestIsThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("consolidate: %w", New(CodeValidation, "email or phoneNumber is required"))

	assert.True(t, HasCode(err, CodeValidation))
	assert.False(t, HasCode(err, CodePersistence))
	assert.Equal(t, CodeValidation, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeBadRequest, http.StatusBadRequest},
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodePersistence, http.StatusInternalServerError},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, ToHTTPStatus(tt.code))
		})
	}
}
