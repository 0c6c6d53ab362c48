package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
	"github.com/TEJ42000/ALLMS-sub004/pkg/timeutil"
)

func TestDateRoundTrip(t *testing.T) {
	assert.False(t, dateArg(0).Valid)
	assert.Equal(t, timeutil.Day(0), dayFrom(dateArg(0)))

	d := timeutil.DayOf(2024, time.March, 31)
	arg := dateArg(d)
	assert.True(t, arg.Valid)
	assert.Equal(t, "2024-03-31", arg.Time.Format(timeutil.DateLayout))
	assert.Equal(t, d, dayFrom(arg))
}

func TestGetMigrations_Ordered(t *testing.T) {
	migs := GetMigrations()
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
}

func TestStoreError_Kinds(t *testing.T) {
	err := storeError("Get", "select", errors.New("connection reset"))
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)

	err = storeError("Get", "select", context.DeadlineExceeded)
	assert.ErrorIs(t, err, shared.ErrTimeout)

	err = storeError("Save", "update", &pgconn.PgError{Code: "23514"})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.True(t, IsCheckViolation(err))
	assert.False(t, IsUniqueViolation(err))
}

func TestNewConnectionFromURL_UnreachableIsStoreUnavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := NewConnectionFromURL(ctx,
		"postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1", PoolOptions{})
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
}
