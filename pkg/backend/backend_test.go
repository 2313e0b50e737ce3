package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloseNothingOpened(t *testing.T) {
	assert.NoError(t, (&Backend{}).Close(context.Background()))
}

func TestOpenBadPostgresDSN(t *testing.T) {
	b, err := Open(context.Background(), Config{PostgresDSN: "postgres://%zz"}, nil)
	assert.Nil(t, b)
	assert.ErrorContains(t, err, "PostgreSQL")
}
