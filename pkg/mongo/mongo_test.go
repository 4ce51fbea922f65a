package mongo_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	driver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/dmitrymomot/sessionkit/pkg/mongo"
)

func TestConnect_Errors(t *testing.T) {
	_, err := mongo.Connect(t.Context(), mongo.Config{})
	assert.ErrorIs(t, err, mongo.ErrFailedToConnectToMongo)
	assert.ErrorIs(t, err, mongo.ErrEmptyConnectionURL)

	_, err = mongo.Connect(t.Context(), mongo.Config{ConnectionURL: "postgres://nope", RetryInterval: time.Millisecond})
	assert.ErrorIs(t, err, mongo.ErrFailedToConnectToMongo)
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, mongo.IsNotFoundError(fmt.Errorf("wrapped: %w", driver.ErrNoDocuments)))
	assert.False(t, mongo.IsNotFoundError(errors.New("other")))

	dup := driver.WriteException{WriteErrors: []driver.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.True(t, mongo.IsDuplicateKeyError(dup))
	assert.False(t, mongo.IsDuplicateKeyError(driver.ErrNoDocuments))
}
