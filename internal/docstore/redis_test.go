package docstore

import (
	"context"
	"errors"
	"testing"

	"fitness-bot/pkg/logger"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_Get(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()
	s := NewRedisStore(rdb, logger.NewNop())
	ctx := context.Background()

	mock.ExpectGet("docstore:users/u1").SetVal(`{"data":{"name":"a","count":2},"version":7,"updatedAt":"2024-03-01T10:00:00Z"}`)
	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "users", doc.Collection)
	assert.Equal(t, "u1", doc.Key)
	assert.Equal(t, int64(7), doc.Version)
	assert.Equal(t, 2024, doc.UpdatedAt.Year())

	var d testDoc
	require.NoError(t, doc.Decode(&d))
	assert.Equal(t, testDoc{Name: "a", Count: 2}, d)

	mock.ExpectGet("docstore:users/u2").RedisNil()
	_, err = s.Get(ctx, "users", "u2")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectGet("docstore:users/u3").SetErr(errors.New("i/o timeout"))
	_, err = s.Get(ctx, "users", "u3")
	assert.ErrorIs(t, err, ErrRemoteWrite)

	mock.ExpectGet("docstore:users/u4").SetVal(`not json`)
	_, err = s.Get(ctx, "users", "u4")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Delete(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()
	s := NewRedisStore(rdb, logger.NewNop())
	ctx := context.Background()

	mock.ExpectDel("docstore:users/programs/active").SetVal(1)
	mock.ExpectPublish("docstore-changes:users/programs/active", "deleted").SetVal(1)
	require.NoError(t, s.Delete(ctx, "users/programs", "active"))

	mock.ExpectDel("docstore:users/u1").SetErr(errors.New("connection refused"))
	err := s.Delete(ctx, "users", "u1")
	assert.ErrorIs(t, err, ErrRemoteWrite)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_SetRejectsInvalidJSON(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()
	s := NewRedisStore(rdb, logger.NewNop())

	_, err := s.Set(context.Background(), "users", "u1", []byte(`{"open":`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrRemoteWrite)
	assert.NoError(t, mock.ExpectationsWereMet())
}
