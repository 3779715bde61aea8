package persistence

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeTx satisfies pgx.Tx and records Exec statements invoked.
type fakeTx struct {
	stmts      []string
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeTx) Commit(ctx context.Context) error { f.committed = true; return nil }
func (f *fakeTx) Rollback(ctx context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}
func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}
func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (f *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return &pgconn.StatementDescription{}, errors.New("not implemented")
}
func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row { return errRow{err: errors.New("not implemented")} }
func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.stmts = append(f.stmts, sql)
	return pgconn.CommandTag{}, nil
}
func (f *fakeTx) Conn() *pgx.Conn { return nil }

type boolRow struct{ v bool }

func (r boolRow) Scan(dest ...any) error {
	*(dest[0].(*bool)) = r.v
	return nil
}

// fakeConn emulates a pooled server session: it tracks search_path across borrows.
type fakeConn struct {
	mu         sync.Mutex
	source     *fakeSource
	schemas    map[string]bool
	searchPath string
	resetErr   error
	bindErr    error
	resetCtxOK bool
	borrowed   bool
	released   int
	discarded  int
	tx         *fakeTx
}

func (c *fakeConn) SearchPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searchPath
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sql != setSearchPathSQL {
		return pgconn.CommandTag{}, nil
	}
	target := strings.Trim(args[0].(string), `"`)
	if target == c.source.defaultSchema {
		c.resetCtxOK = ctx.Err() == nil
		if c.resetErr != nil {
			return pgconn.CommandTag{}, c.resetErr
		}
	} else if c.bindErr != nil {
		return pgconn.CommandTag{}, c.bindErr
	}
	c.searchPath = target
	return pgconn.NewCommandTag("SELECT 1"), nil
}

func (c *fakeConn) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeConn) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if sql == schemaExistsSQL {
		return boolRow{v: c.schemas[args[0].(string)]}
	}
	return errRow{err: errors.New("not implemented")}
}

func (c *fakeConn) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	c.tx = &fakeTx{}
	return c.tx, nil
}

func (c *fakeConn) Release() {
	c.mu.Lock()
	c.released++
	c.borrowed = false
	c.mu.Unlock()
	c.source.free <- c
}

func (c *fakeConn) Discard(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discarded++
	c.borrowed = false
	return nil
}

// fakeSource is a fixed-size pool of fakeConns.
type fakeSource struct {
	defaultSchema string
	free          chan *fakeConn
	conns         []*fakeConn
}

func newFakeSource(size int, defaultSchema string, schemas ...string) *fakeSource {
	s := &fakeSource{defaultSchema: defaultSchema, free: make(chan *fakeConn, size)}
	known := map[string]bool{defaultSchema: true}
	for _, name := range schemas {
		known[name] = true
	}
	for range size {
		c := &fakeConn{source: s, schemas: known, searchPath: defaultSchema}
		s.conns = append(s.conns, c)
		s.free <- c
	}
	return s
}

func (s *fakeSource) Acquire(ctx context.Context) (pooledConn, error) {
	select {
	case c := <-s.free:
		c.mu.Lock()
		c.borrowed = true
		c.mu.Unlock()
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
