package state

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"strings"
	"sync"
	"testing"
)

// lockProbe records which connection acquired and released the named
// lock. MySQL advisory locks are per-connection, so the two must match.
type lockProbe struct {
	mu         sync.Mutex
	nextConnID int
	acquiredOn int
	releasedOn int
}

type lockProbeConnector struct{ probe *lockProbe }

func (c *lockProbeConnector) Connect(context.Context) (driver.Conn, error) {
	c.probe.mu.Lock()
	defer c.probe.mu.Unlock()
	c.probe.nextConnID++
	return &lockProbeConn{id: c.probe.nextConnID, probe: c.probe}, nil
}

func (c *lockProbeConnector) Driver() driver.Driver { return nil }

type lockProbeConn struct {
	id    int
	probe *lockProbe
}

func (c *lockProbeConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (c *lockProbeConn) Close() error                        { return nil }
func (c *lockProbeConn) Begin() (driver.Tx, error)           { return nil, driver.ErrSkip }

func (c *lockProbeConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if strings.Contains(query, "GET_LOCK") {
		c.probe.mu.Lock()
		c.probe.acquiredOn = c.id
		c.probe.mu.Unlock()
		return &singleIntRow{value: 1}, nil
	}
	return &singleIntRow{value: 1}, nil
}

func (c *lockProbeConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	if strings.Contains(query, "RELEASE_LOCK") {
		c.probe.mu.Lock()
		c.probe.releasedOn = c.id
		c.probe.mu.Unlock()
	}
	return driver.RowsAffected(0), nil
}

type singleIntRow struct {
	value int64
	done  bool
}

func (r *singleIntRow) Columns() []string { return []string{"v"} }
func (r *singleIntRow) Close() error      { return nil }

func (r *singleIntRow) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = r.value
	return nil
}

func TestLockReleasesOnAcquiringConnection(t *testing.T) {
	probe := &lockProbe{}
	db := sql.OpenDB(&lockProbeConnector{probe: probe})
	defer db.Close()
	db.SetMaxOpenConns(8)

	store := &MySQLStore{db: db, lockConns: make(map[string]*sql.Conn)}
	ctx := context.Background()

	acquired, err := store.Lock(ctx, "scl|2021-05-21")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if !acquired {
		t.Fatal("Lock() = false, want acquired")
	}

	// Churn the pool: the pinned connection must stay checked out, so
	// these land on other connections.
	for i := 0; i < 4; i++ {
		rows, err := db.QueryContext(ctx, "SELECT 1")
		if err != nil {
			t.Fatal(err)
		}
		rows.Close()
	}

	if err := store.Unlock(ctx, "scl|2021-05-21"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	probe.mu.Lock()
	defer probe.mu.Unlock()
	if probe.acquiredOn == 0 || probe.releasedOn == 0 {
		t.Fatalf("lock traffic missing: acquired on %d, released on %d", probe.acquiredOn, probe.releasedOn)
	}
	if probe.releasedOn != probe.acquiredOn {
		t.Errorf("RELEASE_LOCK ran on connection %d, GET_LOCK on %d; advisory locks are per-connection",
			probe.releasedOn, probe.acquiredOn)
	}
}

func TestUnlockWithoutLockIsHarmless(t *testing.T) {
	probe := &lockProbe{}
	db := sql.OpenDB(&lockProbeConnector{probe: probe})
	defer db.Close()

	store := &MySQLStore{db: db, lockConns: make(map[string]*sql.Conn)}

	if err := store.Unlock(context.Background(), "scl|2021-05-21"); err != nil {
		t.Errorf("Unlock() error = %v, want nil for a lock never taken", err)
	}
	if probe.releasedOn != 0 {
		t.Error("RELEASE_LOCK issued for a lock never taken")
	}
}
