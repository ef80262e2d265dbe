package sync

import (
	"context"
	"testing"

	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/store"
)

type fakeDirectory struct {
	contacts []store.Contact
	mappings []store.LIDMapping
}

func (f *fakeDirectory) GetContacts(context.Context) []store.Contact       { return f.contacts }
func (f *fakeDirectory) GetLIDMappings(context.Context) []store.LIDMapping { return f.mappings }

func TestReconcilerCheckpoints(t *testing.T) {
	db := testDB(t)
	r := NewReconciler(db, nil, bus.New(), nil)

	v, err := r.GetCheckpoint("missing")
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Errorf("missing checkpoint = %q, want empty", v)
	}

	if err := r.UpdateCheckpoint("k", "1"); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateCheckpoint("k", "2"); err != nil {
		t.Fatal(err)
	}
	if v, _ = r.GetCheckpoint("k"); v != "2" {
		t.Errorf("checkpoint = %q, want 2", v)
	}
}

func TestReconcilerInstanceIDIsStable(t *testing.T) {
	db := testDB(t)
	r := NewReconciler(db, nil, bus.New(), nil)

	first, err := r.InstanceID()
	if err != nil {
		t.Fatal(err)
	}
	if first == "" {
		t.Fatal("empty instance id")
	}
	second, err := NewReconciler(db, nil, bus.New(), nil).InstanceID()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("instance id changed: %q then %q", first, second)
	}
}

func TestReconcilerSyncDirectory(t *testing.T) {
	db := testDB(t)
	dir := &fakeDirectory{
		contacts: []store.Contact{{JID: "5511@s.whatsapp.net", Name: "Carol"}},
		mappings: []store.LIDMapping{{LID: "999", PN: "5511"}},
	}
	r := NewReconciler(db, dir, bus.New(), nil)

	if err := r.SyncDirectory(context.Background()); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetContact("5511@s.whatsapp.net")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.Name != "Carol" {
		t.Errorf("contact = %+v", c)
	}
	if v, _ := r.GetCheckpoint(KeyDirectorySynced); v == "" {
		t.Error("directory checkpoint not recorded")
	}
}

func TestReconcilerNilDirectory(t *testing.T) {
	r := NewReconciler(testDB(t), nil, bus.New(), nil)
	if err := r.SyncDirectory(context.Background()); err != nil {
		t.Errorf("SyncDirectory with nil directory: %v", err)
	}
}
