package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/mohair/internal/criterion"
)

type recordedCall struct {
	sql    string
	params []interface{}
}

// fakeConn records every call and replies with fixed rows and error.
func fakeConn(rows []Row, err error) (Connection, *[]recordedCall) {
	var calls []recordedCall
	conn := ConnectionFunc(func(_ context.Context, sql string, params []interface{}) ([]Row, error) {
		calls = append(calls, recordedCall{sql: sql, params: params})
		return rows, err
	})
	return conn, &calls
}

func TestExec_PassesRenderedQuery(t *testing.T) {
	rows := []Row{{"id": int64(1)}, {"id": int64(2)}}
	conn, calls := fakeConn(rows, nil)

	q := users().Where(criterion.Eq("active", true)).Limit(2).Connect(conn)

	got, err := q.Exec(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	got, err = q.Find(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	require.Len(t, *calls, 2)
	assert.Equal(t, "SELECT * FROM users WHERE active = ? LIMIT ?", (*calls)[0].sql)
	assert.Equal(t, []interface{}{true, 2}, (*calls)[0].params)
}

func TestExec_ConfigurationErrors(t *testing.T) {
	conn, calls := fakeConn(nil, nil)

	tests := []struct {
		name string
		q    Query
	}{
		{"no_connection", users()},
		{"no_table", New().Connect(conn)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			_, err := tt.q.Exec(ctx)
			assert.ErrorIs(t, err, ErrConfiguration)

			row, err := tt.q.FindOne(ctx)
			assert.Nil(t, row)
			assert.ErrorIs(t, err, ErrConfiguration)

			ok, err := tt.q.Exists(ctx)
			assert.False(t, ok)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
	assert.Empty(t, *calls, "connection must not be called")
}

func TestExec_ConnectionErrorUnchanged(t *testing.T) {
	boom := errors.New("connection reset")
	conn, _ := fakeConn(nil, boom)
	q := users().Connect(conn)

	_, err := q.Exec(context.Background())
	assert.Same(t, boom, err)

	_, err = q.First(context.Background())
	assert.Same(t, boom, err)

	ok, err := q.Exists(context.Background())
	assert.False(t, ok)
	assert.Same(t, boom, err)
}

func TestFindOne(t *testing.T) {
	tests := []struct {
		name    string
		rows    []Row
		err     error
		wantRow Row
	}{
		{"first_of_many", []Row{{"id": 1}, {"id": 2}}, nil, Row{"id": 1}},
		{"no_rows", nil, nil, nil},
		{"empty_rows", []Row{}, nil, nil},
		{"rows_with_error", []Row{{"id": 3}}, errors.New("partial"), Row{"id": 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, _ := fakeConn(tt.rows, tt.err)
			row, err := users().Connect(conn).FindOne(context.Background())
			assert.Equal(t, tt.wantRow, row)
			assert.Equal(t, tt.err, err)
		})
	}
}

func TestExists(t *testing.T) {
	conn, _ := fakeConn([]Row{{"1": 1}}, nil)
	ok, err := users().Select("1").Limit(1).Connect(conn).Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	conn, _ = fakeConn(nil, nil)
	ok, err = users().Connect(conn).Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExec_NilContext(t *testing.T) {
	var got context.Context
	conn := ConnectionFunc(func(ctx context.Context, _ string, _ []interface{}) ([]Row, error) {
		got = ctx
		return nil, nil
	})

	//nolint:staticcheck // exercising the nil-context fallback
	_, err := users().Connect(conn).Exec(nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestExec_ContextIsForwarded(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	conn := ConnectionFunc(func(ctx context.Context, _ string, _ []interface{}) ([]Row, error) {
		return []Row{{"v": ctx.Value(key{})}}, nil
	})

	row, err := users().Connect(conn).FindOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v", row["v"])
}
