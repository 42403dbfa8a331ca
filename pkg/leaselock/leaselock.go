// Package leaselock provides expiring, renewed locks stored in Postgres.
// Workers take a lease per job so a redelivered message never runs twice
// at the same time.
package leaselock

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrBusy = errors.New("lease lock busy")
	ErrLost = errors.New("lease lock lost")
)

const (
	defaultTTL          = 5 * time.Minute
	defaultWaitInterval = 250 * time.Millisecond
	renewTimeout        = 15 * time.Second
	renewAttempts       = 3
)

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Client hands out leases from the job_leases table.
type Client struct {
	db     dbConn
	holder string
	opts   Options
}

// Options tune lease lifetime. TTL defaults to five minutes and leases are
// renewed every TTL/2. With Wait set Acquire polls until the lease frees
// up or ctx ends instead of failing with ErrBusy.
type Options struct {
	TTL          time.Duration
	RenewEvery   time.Duration
	Wait         bool
	WaitInterval time.Duration
	WaitJitter   time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL < time.Second {
		o.TTL = defaultTTL
	}
	if o.RenewEvery <= 0 || o.RenewEvery >= o.TTL {
		o.RenewEvery = max(o.TTL/2, time.Second)
	}
	if o.WaitInterval <= 0 {
		o.WaitInterval = defaultWaitInterval
	}
	o.WaitJitter = max(o.WaitJitter, 0)
	return o
}

// Lease is a held lock. Its Context is canceled when the lease is released
// or can no longer be renewed.
type Lease struct {
	Key     string
	Token   string
	Context context.Context

	client   *Client
	cancel   context.CancelCauseFunc
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a client on pool. holder names this process in the lock
// table and prefixes every lease token.
func New(pool *pgxpool.Pool, holder string, opts Options) *Client {
	return newClient(pool, holder, opts)
}

func newClient(db dbConn, holder string, opts Options) *Client {
	return &Client{db: db, holder: holder, opts: opts.withDefaults()}
}

// WithLease runs fn while holding the lease on key. fn receives the lease
// context, which ends early with ErrLost as cause when renewal fails.
func (c *Client) WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lease, err := c.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		_ = lease.Release(context.WithoutCancel(ctx))
	}()
	return fn(lease.Context)
}

// Acquire takes the lease on key.
func (c *Client) Acquire(ctx context.Context, key string) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease lock key is empty")
	}
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	token := c.holder + ":" + id
	ttl := c.opts.TTL.Milliseconds()

	for {
		ok, err := c.tryAcquire(ctx, key, token, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !c.opts.Wait {
			return nil, ErrBusy
		}
		if err := sleep(ctx, c.opts.WaitInterval, c.opts.WaitJitter); err != nil {
			return nil, err
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	l := &Lease{
		Key:     key,
		Token:   token,
		Context: leaseCtx,
		client:  c,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
	}
	go l.keepAlive(ttl)
	return l, nil
}

func (c *Client) tryAcquire(ctx context.Context, key, token string, ttl int64) (bool, error) {
	var got string
	err := c.db.QueryRow(ctx, tryAcquireSQL, key, token, ttl).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return got != "", nil
}

// Release stops renewal and deletes the lease row if still held.
func (l *Lease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.cancel(context.Canceled)
	})
	_, err := l.client.db.Exec(ctx, releaseSQL, l.Key, l.Token)
	return err
}

func (l *Lease) keepAlive(ttl int64) {
	t := time.NewTicker(l.client.opts.RenewEvery)
	defer t.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-l.Context.Done():
			return
		case <-t.C:
			if err := l.renew(ttl); err != nil {
				l.cancel(err)
				return
			}
		}
	}
}

func (l *Lease) renew(ttl int64) error {
	var err error
	for attempt := range renewAttempts {
		if attempt > 0 {
			if serr := sleep(l.Context, 200*time.Millisecond, 0); serr != nil {
				return serr
			}
		}
		ctx, cancel := context.WithTimeout(l.Context, renewTimeout)
		var got string
		err = l.client.db.QueryRow(ctx, renewSQL, l.Key, l.Token, ttl).Scan(&got)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLost
		}
	}
	return err
}

func sleep(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const tryAcquireSQL = `
INSERT INTO job_leases (lease_key, holder, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lease_key) DO UPDATE
SET holder     = EXCLUDED.holder,
    expires_at = EXCLUDED.expires_at
WHERE job_leases.expires_at < now()
   OR job_leases.holder = EXCLUDED.holder
RETURNING lease_key;
`

const renewSQL = `
UPDATE job_leases
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lease_key = $1 AND holder = $2
RETURNING lease_key;
`

const releaseSQL = `
DELETE FROM job_leases
WHERE lease_key = $1 AND holder = $2;
`
