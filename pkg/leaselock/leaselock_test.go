package leaselock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockRow struct {
	holder  string
	expires time.Time
}

type fakeDB struct {
	mu   sync.Mutex
	rows map[string]lockRow
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string]lockRow)}
}

type row struct {
	key string
	err error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.key
	return nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, holder, ttl := args[0].(string), args[1].(string), args[2].(int64)
	expires := time.Now().Add(time.Duration(ttl) * time.Millisecond)
	cur, held := f.rows[key]

	switch sql {
	case tryAcquireSQL:
		if held && cur.holder != holder && cur.expires.After(time.Now()) {
			return row{err: pgx.ErrNoRows}
		}
		f.rows[key] = lockRow{holder: holder, expires: expires}
		return row{key: key}
	case renewSQL:
		if !held || cur.holder != holder {
			return row{err: pgx.ErrNoRows}
		}
		f.rows[key] = lockRow{holder: holder, expires: expires}
		return row{key: key}
	}
	return row{err: errors.New("unexpected query")}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, holder := args[0].(string), args[1].(string)
	if cur, ok := f.rows[key]; ok && cur.holder == holder {
		delete(f.rows, key)
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) steal(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[key] = lockRow{holder: "thief", expires: time.Now().Add(time.Hour)}
}

func TestAcquire_Busy(t *testing.T) {
	db := newFakeDB()
	a := newClient(db, "worker-a", Options{})
	b := newClient(db, "worker-b", Options{})
	ctx := context.Background()

	lease, err := a.Acquire(ctx, "job:1")
	require.NoError(t, err)

	_, err = b.Acquire(ctx, "job:1")
	assert.ErrorIs(t, err, ErrBusy)

	other, err := b.Acquire(ctx, "job:2")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	assert.ErrorIs(t, lease.Context.Err(), context.Canceled)

	again, err := b.Acquire(ctx, "job:1")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestAcquire_EmptyKey(t *testing.T) {
	_, err := newClient(newFakeDB(), "w", Options{}).Acquire(context.Background(), "")
	assert.Error(t, err)
}

func TestWithLease_ReleasesAfterRun(t *testing.T) {
	db := newFakeDB()
	c := newClient(db, "w", Options{})

	ran := false
	err := c.WithLease(context.Background(), "job:1", func(ctx context.Context) error {
		ran = true
		assert.Len(t, db.rows, 1)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Empty(t, db.rows)

	want := errors.New("boom")
	err = c.WithLease(context.Background(), "job:1", func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
	assert.Empty(t, db.rows)
}

func TestAcquire_Wait(t *testing.T) {
	db := newFakeDB()
	a := newClient(db, "worker-a", Options{})
	b := newClient(db, "worker-b", Options{Wait: true, WaitInterval: 5 * time.Millisecond})
	ctx := context.Background()

	lease, err := a.Acquire(ctx, "job:1")
	require.NoError(t, err)
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = lease.Release(ctx)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	got, err := b.Acquire(waitCtx, "job:1")
	require.NoError(t, err)
	require.NoError(t, got.Release(ctx))
}

func TestLease_LostOnRenew(t *testing.T) {
	db := newFakeDB()
	c := newClient(db, "w", Options{TTL: time.Second, RenewEvery: 10 * time.Millisecond})

	lease, err := c.Acquire(context.Background(), "job:1")
	require.NoError(t, err)
	db.steal("job:1")

	select {
	case <-lease.Context.Done():
		assert.ErrorIs(t, context.Cause(lease.Context), ErrLost)
	case <-time.After(time.Second):
		t.Fatal("lease context was not canceled")
	}
}
