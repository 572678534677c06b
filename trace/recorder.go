package trace

import (
	"database/sql"
	"fmt"
	"sync"
	"weak"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/lifetime/errors"
	"github.com/wippyai/lifetime/resource"
)

const defaultBatchSize = 1024

// Config configures a Recorder.
type Config struct {
	// Path of the SQLite database file. Empty keeps the trace in memory.
	Path string

	// BatchSize is the number of buffered events that triggers a flush.
	BatchSize int
}

// Entry is one recorded lifecycle event.
type Entry struct {
	Seq     int64
	Session string
	Handle  resource.Handle
	TypeID  resource.TypeID
	Event   string
	Value   string
}

// Recorder is a resource.Observer that writes lifecycle events to SQLite.
// Subscribe one Recorder per table; handles are only unique within a table.
type Recorder struct {
	db      *sql.DB
	insert  *sql.Stmt
	session xid.ID

	mu        sync.Mutex
	pending   []Entry
	batchSize int
	seq       int64
	closed    bool
}

var _ resource.Observer = (*Recorder)(nil)

// New opens a Recorder with default configuration.
func New() (*Recorder, error) {
	return NewWithConfig(nil)
}

// NewWithConfig opens a Recorder. Events are buffered and written in
// batches; pending events are also flushed on atexit.Exit. The exit hook
// holds the Recorder weakly, so an unreachable Recorder is still collected.
func NewWithConfig(cfg *Config) (*Recorder, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	dsn := cfg.Path
	if dsn == "" {
		dsn = ":memory:"
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseTrace, errors.KindStorage, err, "open database")
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	r := &Recorder{
		db:        db,
		session:   xid.New(),
		batchSize: batch,
	}
	if err := r.createTable(); err != nil {
		_ = db.Close()
		return nil, err
	}

	atexit.Register(flushOnExit(weak.Make(r)))

	Logger().Debug("trace recorder opened",
		zap.String("path", dsn),
		zap.Stringer("session", r.session))

	return r, nil
}

// flushOnExit flushes the Recorder if it is still alive and open.
func flushOnExit(wp weak.Pointer[Recorder]) func() {
	return func() {
		r := wp.Value()
		if r == nil {
			return
		}
		if err := r.Flush(); err != nil && !r.isClosed() {
			Logger().Warn("trace flush on exit failed",
				zap.Stringer("session", r.session),
				zap.Error(err))
		}
	}
}

func (r *Recorder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Recorder) createTable() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lifecycle
		(
			seq     INTEGER      NOT NULL,
			session VARCHAR(20)  NOT NULL,
			handle  INTEGER      NOT NULL,
			type_id INTEGER      NOT NULL,
			event   VARCHAR(32)  NOT NULL,
			value   TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS lifecycle_handle_index
			ON lifecycle (session, handle);`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return errors.Wrap(errors.PhaseTrace, errors.KindStorage, err, "create table")
		}
	}

	stmt, err := r.db.Prepare(`INSERT INTO lifecycle VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(errors.PhaseTrace, errors.KindStorage, err, "prepare insert")
	}
	r.insert = stmt
	return nil
}

// Session returns the identifier stamped on every event of this Recorder.
func (r *Recorder) Session() string {
	return r.session.String()
}

// OnResourceEvent buffers e. A failed batch write is logged.
func (r *Recorder) OnResourceEvent(e resource.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.seq++
	r.pending = append(r.pending, Entry{
		Seq:     r.seq,
		Session: r.session.String(),
		Handle:  e.Handle,
		TypeID:  e.TypeID,
		Event:   e.Type.String(),
		Value:   describe(e.Value),
	})

	if len(r.pending) >= r.batchSize {
		if err := r.flushLocked(); err != nil {
			Logger().Warn("trace flush failed",
				zap.Stringer("session", r.session),
				zap.Error(err))
		}
	}
}

// Flush writes buffered events to the database.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.Closed(errors.PhaseTrace, "trace recorder")
	}
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	if len(r.pending) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(errors.PhaseTrace, errors.KindStorage, err, "begin")
	}

	stmt := tx.Stmt(r.insert)
	for _, e := range r.pending {
		_, err := stmt.Exec(e.Seq, e.Session, int64(e.Handle), int64(e.TypeID), e.Event, e.Value)
		if err != nil {
			_ = tx.Rollback()
			return errors.Wrap(errors.PhaseTrace, errors.KindStorage, err, "insert event")
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.PhaseTrace, errors.KindStorage, err, "commit")
	}

	r.pending = r.pending[:0]
	return nil
}

// Events returns the recorded history of handle, oldest first.
func (r *Recorder) Events(handle resource.Handle) ([]Entry, error) {
	if err := r.Flush(); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT seq, session, handle, type_id, event, value
		FROM lifecycle
		WHERE session = ? AND handle = ?
		ORDER BY seq`,
		r.session.String(), int64(handle))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseTrace, errors.KindStorage, err, "query events")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e      Entry
			h, tid int64
		)
		if err := rows.Scan(&e.Seq, &e.Session, &h, &tid, &e.Event, &e.Value); err != nil {
			return nil, errors.Wrap(errors.PhaseTrace, errors.KindStorage, err, "scan event")
		}
		e.Handle = resource.Handle(h)
		e.TypeID = resource.TypeID(tid)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.PhaseTrace, errors.KindStorage, err, "query events")
	}
	return entries, nil
}

// Close flushes pending events and closes the database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	err := r.flushLocked()
	r.closed = true

	if cerr := r.insert.Close(); cerr != nil {
		err = multierr.Append(err, errors.Wrap(errors.PhaseTrace, errors.KindStorage, cerr, "close statement"))
	}
	if cerr := r.db.Close(); cerr != nil {
		err = multierr.Append(err, errors.Wrap(errors.PhaseTrace, errors.KindStorage, cerr, "close database"))
	}
	return err
}

func describe(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%T", v)
	}
}
