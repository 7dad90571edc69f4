package info

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(&State{}, &Bank{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewDatabase(db)
}

func TestGetStateCreatesAtZero(t *testing.T) {
	db := newTestDatabase(t)

	state, err := db.GetState()
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.LastBlockHeight != 0 {
		t.Errorf("fresh cursor: got %d, want 0", state.LastBlockHeight)
	}

	again, err := db.GetState()
	if err != nil {
		t.Fatalf("get state again: %v", err)
	}
	if again.ID != state.ID {
		t.Errorf("second read created a new row: %d vs %d", again.ID, state.ID)
	}
}

func TestSetLastBlockHeight(t *testing.T) {
	db := newTestDatabase(t)

	if err := db.SetLastBlockHeight(17); err != nil {
		t.Fatalf("set: %v", err)
	}
	state, err := db.GetState()
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.LastBlockHeight != 17 {
		t.Errorf("cursor: got %d, want 17", state.LastBlockHeight)
	}
}

func TestInitBlockHeightOnlyOnce(t *testing.T) {
	db := newTestDatabase(t)

	applied, err := db.InitBlockHeight(40)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !applied {
		t.Fatal("first init on a zero cursor must apply")
	}

	applied, err = db.InitBlockHeight(99)
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	if applied {
		t.Error("init applied over a non-zero cursor")
	}

	state, err := db.GetState()
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.LastBlockHeight != 40 {
		t.Errorf("cursor: got %d, want 40", state.LastBlockHeight)
	}
}

func TestAddBankIdempotent(t *testing.T) {
	db := newTestDatabase(t)

	for i := 0; i < 3; i++ {
		if err := db.AddBank("a1b2"); err != nil {
			t.Fatalf("add bank: %v", err)
		}
	}
	if err := db.AddBank("c3d4"); err != nil {
		t.Fatalf("add second bank: %v", err)
	}

	ids, err := db.ListBankIDs()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a1b2" || ids[1] != "c3d4" {
		t.Errorf("bank ids: got %v, want [a1b2 c3d4]", ids)
	}
}

func TestReset(t *testing.T) {
	db := newTestDatabase(t)

	if err := db.SetLastBlockHeight(25); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.AddBank("a1b2"); err != nil {
		t.Fatalf("add bank: %v", err)
	}

	if err := db.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	state, err := db.GetState()
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.LastBlockHeight != 0 {
		t.Errorf("cursor after reset: got %d, want 0", state.LastBlockHeight)
	}
	ids, err := db.ListBankIDs()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("bank ids after reset: got %v", ids)
	}
}
