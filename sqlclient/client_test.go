package sqlclient

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novaquery"
	"github.com/tuannm99/novaquery/internal/record"
	"github.com/tuannm99/novaquery/server/novaquerywire"
)

var ctx = context.Background()

func startServer(t *testing.T) string {
	t.Helper()
	ss, err := record.SchemaSetFromTypes(map[string]map[string]string{
		"Invoice": {"id": "Number", "total": "Number"},
	})
	require.NoError(t, err)
	db := novaquery.Open(ss)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- novaquerywire.NewServer(db, nil).Serve(srvCtx, ln) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return ln.Addr().String()
}

func TestClient_ExecOverWire(t *testing.T) {
	addr := startServer(t)
	c, err := Dial(ctx, addr, WithDialTimeout(time.Second), WithRequestTimeout(5*time.Second))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	res, err := c.Exec(ctx, "INSERT INTO Invoice (id, total) VALUES (?, ?)", 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.AffectedRows)
	assert.NotEmpty(t, c.Session())

	res, err = c.Exec(ctx, "SELECT id, total FROM Invoice WHERE total > ?", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "total"}, res.Columns)
	assert.Equal(t, [][]any{{1.0, 100.0}}, res.Rows())

	plan, err := c.Explain(ctx, "SELECT id FROM Invoice WHERE total > 1")
	require.NoError(t, err)
	assert.Contains(t, plan, "where: total > 1")
}

func TestClient_RemoteErrors(t *testing.T) {
	addr := startServer(t)
	c, err := Dial(ctx, addr, WithDialTimeout(time.Second))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.Exec(ctx, "SELEKT 1")
	require.Error(t, err)
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "parse", re.Kind)

	// the session survives a failed statement
	res, err := c.Exec(ctx, "SELECT id FROM Invoice")
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestClient_Sessions(t *testing.T) {
	addr := startServer(t)
	a, err := Dial(ctx, addr, WithDialTimeout(time.Second))
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	b, err := Dial(ctx, addr, WithDialTimeout(time.Second))
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	_, err = a.Exec(ctx, "INSERT INTO Invoice (id) VALUES (1)")
	require.NoError(t, err)

	// sessions share one store
	res, err := b.Exec(ctx, "SELECT COUNT(id) AS n FROM Invoice")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"n": 1.0}}, res.Records)
	assert.NotEqual(t, a.Session(), b.Session())
}

func TestClient_Closed(t *testing.T) {
	var nilClient *Client
	_, err := nilClient.Exec(ctx, "SELECT id FROM Invoice")
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, nilClient.Close())

	addr := startServer(t)
	c, err := Dial(ctx, addr)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err = c.Exec(ctx, "SELECT id FROM Invoice")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClient_CancelledContextClosesClient(t *testing.T) {
	// a listener that accepts and never answers
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer func() { _ = conn.Close() }()
			_, _ = io.Copy(io.Discard, conn)
		}
	}()

	c, err := Dial(ctx, ln.Addr().String())
	require.NoError(t, err)

	reqCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = c.Exec(reqCtx, "SELECT id FROM Invoice")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = c.Exec(ctx, "SELECT id FROM Invoice")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDial_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(ctx, addr, WithDialTimeout(time.Second))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlclient: dial")
}
