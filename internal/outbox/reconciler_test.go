package outbox

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/shiftsync/internal/actions"
	"github.com/matheus3301/shiftsync/internal/bus"
	"github.com/matheus3301/shiftsync/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func statusOf(t *testing.T, db *store.DB, callID string) store.Call {
	t.Helper()
	calls, err := db.RecentCalls(50)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range calls {
		if c.CallID == callID {
			return c
		}
	}
	t.Fatalf("call %s not journaled", callID)
	return store.Call{}
}

func TestReconcileSettlesEarlierRun(t *testing.T) {
	db := testDB(t)
	for _, id := range []string{"c1", "c2"} {
		if err := db.RecordCall(id, "applyToShift", `{"shiftId":"s1"}`); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.MarkCallOK("c2"); err != nil {
		t.Fatal(err)
	}

	b := bus.New()
	events, unsub := b.Subscribe(bus.KindActionFailed, 4)
	defer unsub()

	r := NewReconciler(db, b, zap.NewNop(), WithStart(time.Now().Add(time.Second)))
	n, err := r.Reconcile()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("settled %d calls, want 1", n)
	}

	if c := statusOf(t, db, "c1"); c.Status != store.CallFailed || c.ErrorMessage != Interrupted {
		t.Errorf("c1 = %+v, want failed/%q", c, Interrupted)
	}
	if c := statusOf(t, db, "c2"); c.Status != store.CallOK {
		t.Errorf("c2 status = %q, want ok", c.Status)
	}

	select {
	case evt := <-events:
		res, ok := evt.Payload.(actions.Result)
		if !ok || res.CallID != "c1" || res.Procedure != "applyToShift" || res.Error != Interrupted {
			t.Errorf("event payload = %#v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no action.failed event")
	}

	if n, _ := r.Reconcile(); n != 0 {
		t.Errorf("second pass settled %d calls, want 0", n)
	}
}

func TestReconcileLeavesCurrentRunAlone(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	events, unsub := b.Subscribe("action.", 4)
	defer unsub()

	r := NewReconciler(db, b, zap.NewNop(), WithStart(time.Now().Add(-time.Hour)))
	if err := db.RecordCall("c1", "acceptOffer", `{}`); err != nil {
		t.Fatal(err)
	}

	n, err := r.Reconcile()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("settled %d in-flight calls, want 0", n)
	}
	if err := db.MarkCallOK("c1"); err != nil {
		t.Fatal(err)
	}
	if c := statusOf(t, db, "c1"); c.Status != store.CallOK {
		t.Errorf("c1 status = %q, want ok", c.Status)
	}
	select {
	case evt := <-events:
		t.Errorf("unexpected event %s", evt.Kind)
	default:
	}
}

type brokenJournal struct{}

func (brokenJournal) StaleCalls(time.Time) ([]store.Call, error) {
	return nil, errors.New("disk gone")
}

func (brokenJournal) MarkCallFailed(string, string) error { return nil }

func TestReconcileJournalError(t *testing.T) {
	r := NewReconciler(brokenJournal{}, bus.New(), zap.NewNop())
	if _, err := r.Reconcile(); err == nil {
		t.Fatal("expected journal error")
	}
}
