package databasesql

import (
	"context"
	"errors"
	"testing"

	"github.com/youssefsiam38/ctxoffload/driver"
	"github.com/youssefsiam38/ctxoffload/internal/testutil"
)

func TestDriver_QuoteIdentifier(t *testing.T) {
	d := New(nil)
	if got := d.QuoteIdentifier(`we"ird`); got != `"we""ird"` {
		t.Errorf("QuoteIdentifier = %s, want %s", got, `"we""ird"`)
	}
	if d.PoolIsSet() {
		t.Error("Expected PoolIsSet to be false without a connection")
	}
}

func TestIntegration_Executor(t *testing.T) {
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	defer db.Close()

	d, err := Open(db.URL)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	exec := d.GetExecutor()

	var n int
	if err := exec.QueryRow(ctx, "SELECT 1").Scan(&n); err != nil {
		t.Fatalf("QueryRow failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1, got %d", n)
	}

	err = exec.QueryRow(ctx, "SELECT 1 WHERE false").Scan(&n)
	if !errors.Is(err, driver.ErrNoRows) {
		t.Errorf("Expected driver.ErrNoRows, got %v", err)
	}
}
