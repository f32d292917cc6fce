package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lyzr/orchestrator/common/db"
)

// Session is the transactional unit of work entities write through (§4.12
// "session_scope() opens a transactional unit of work... Entities expose
// create(session, ...) and save(session); no write occurs outside a
// scope."). It wraps a pgx.Tx and defers realtime event emission until
// after commit.
type Session struct {
	tx           pgx.Tx
	postCommit   []func(context.Context)
}

// Exec/Query/QueryRow let repositories issue statements against the scope's
// transaction the same way common/db.DB's methods work against the pool.
func (s *Session) Exec(ctx context.Context, sql string, args ...interface{}) error {
	_, err := s.tx.Exec(ctx, sql, args...)
	return err
}

func (s *Session) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return s.tx.Query(ctx, sql, args...)
}

func (s *Session) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return s.tx.QueryRow(ctx, sql, args...)
}

// OnCommit registers a callback to run only after the enclosing scope
// commits successfully — the hook C10 event emission uses so that a
// subscriber never observes an event for a write that later rolled back.
func (s *Session) OnCommit(fn func(ctx context.Context)) {
	s.postCommit = append(s.postCommit, fn)
}

// SessionScope opens a Session bound to a fresh transaction on database,
// runs fn, and commits on normal return or rolls back on error/panic.
// Matches common/db.DB's pool-wrapper convention: callers never see the
// underlying pgx types directly.
func SessionScope(ctx context.Context, database *db.DB, fn func(ctx context.Context, s *Session) error) (err error) {
	tx, err := database.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	session := &Session{tx: tx}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("commit transaction: %w", commitErr)
			return
		}
		for _, hook := range session.postCommit {
			hook(ctx)
		}
	}()

	err = fn(ctx, session)
	return err
}
