package coreerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/coreerr"
)

func TestErrorsIsMatchesOnCode(t *testing.T) {
	err := coreerr.New(coreerr.CodeFactorNotFound, "factor is not registered")
	wrapped := fmt.Errorf("looking up factor: %w", err)

	assert.True(t, errors.Is(wrapped, coreerr.New(coreerr.CodeFactorNotFound, "different message")))
	assert.False(t, errors.Is(wrapped, coreerr.New(coreerr.CodeFactorAlreadyExists, "")))
}

func TestCodeOfAndHasCode(t *testing.T) {
	err := coreerr.Wrap(coreerr.CodeEpochConflict, "flushing", errors.New("remote changed"))
	code, ok := coreerr.CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, coreerr.CodeEpochConflict, code)
	assert.True(t, coreerr.HasCode(err, coreerr.CodeEpochConflict))
	assert.False(t, coreerr.HasCode(err, coreerr.CodeFactorNotFound))

	_, ok = coreerr.CodeOf(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, coreerr.HasCode(nil, coreerr.CodeEpochConflict))
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("the underlying cause")
	err := coreerr.Wrap(coreerr.CodeReconstructionFailed, "reconstructing", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "reconstructing")
}

func TestCodeCategory(t *testing.T) {
	assert.Equal(t, coreerr.CategoryConfiguration, coreerr.CodeInvalidClientID.Category())
	assert.Equal(t, coreerr.CategoryKeyManagement, coreerr.CodeEpochConflict.Category())
	assert.Equal(t, coreerr.CategoryFactor, coreerr.CodeFactorNotFound.Category())
	assert.Equal(t, coreerr.CategoryLifecycle, coreerr.CodeNotLoggedIn.Category())
}
