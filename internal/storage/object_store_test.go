package storage

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestTranslateMissingObject(t *testing.T) {
	err := translate(minio.ErrorResponse{Code: "NoSuchKey", Message: "gone"})
	assert.ErrorIs(t, err, ErrObjectNotFound)

	other := errors.New("connection reset")
	assert.Equal(t, other, translate(other))
}
