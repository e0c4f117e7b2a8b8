package adapters

import (
	"context"
	"errors"
	"testing"
)

// stubAdapter answers health checks with a fixed error and counts closes.
type stubAdapter struct {
	name      string
	healthErr error
	closeErr  error
	closed    int
}

func (a *stubAdapter) Name() string                      { return a.name }
func (a *stubAdapter) Dialect() Dialect                  { d, _ := DialectFor(a.name); return d }
func (a *stubAdapter) SuppressErrors(bool) bool          { return false }
func (a *stubAdapter) Ping(context.Context) error        { return a.healthErr }
func (a *stubAdapter) CheckHealth(context.Context) error { return a.healthErr }

func (a *stubAdapter) Close() error {
	a.closed++
	return a.closeErr
}

func (a *stubAdapter) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return 0, nil
}

func (a *stubAdapter) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	return &QueryResult{}, nil
}

func (a *stubAdapter) QueryValue(ctx context.Context, query string, args ...any) (any, error) {
	return nil, nil
}

var _ EngineAdapter = (*stubAdapter)(nil)

func TestRegistry_RegisterAndAvailable(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAdapter{name: SQLite})
	r.Register(&stubAdapter{name: MySQL})
	r.Register(&stubAdapter{name: SQLite})

	got := r.Available()
	if len(got) != 2 || got[0] != MySQL || got[1] != SQLite {
		t.Errorf("expected [mysql sqlite], got %v", got)
	}
}

func TestRegistry_CheckAllHealth(t *testing.T) {
	down := errors.New("connection refused")
	r := NewRegistry()
	r.Register(&stubAdapter{name: SQLite})
	r.Register(&stubAdapter{name: MySQL, healthErr: down})

	health := r.CheckAllHealth(context.Background())
	if health[SQLite] != nil {
		t.Errorf("expected sqlite healthy, got %v", health[SQLite])
	}
	if !errors.Is(health[MySQL], down) {
		t.Errorf("expected mysql to report %v, got %v", down, health[MySQL])
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	closeErr := errors.New("close failed")
	ok := &stubAdapter{name: SQLite}
	failing := &stubAdapter{name: MySQL, closeErr: closeErr}

	r := NewRegistry()
	r.Register(ok)
	r.Register(failing)

	if err := r.CloseAll(); !errors.Is(err, closeErr) {
		t.Errorf("expected the close error, got %v", err)
	}
	if ok.closed != 1 || failing.closed != 1 {
		t.Errorf("expected every adapter closed once, got %d and %d", ok.closed, failing.closed)
	}
}
