package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopfloor/shearlock/internal/shear/store"
	"github.com/shopfloor/shearlock/internal/shear/store/sqlite"
)

func TestUserStore_LookupActiveUser(t *testing.T) {
	conn := openTestDB(t)
	us := sqlite.NewUserStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if err := us.AddUser(ctx, store.User{CardID: "123456789", Name: "Ada"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	u, err := us.LookupActiveUser(ctx, "123456789")
	if err != nil {
		t.Fatalf("LookupActiveUser: %v", err)
	}
	if u == nil || u.Name != "Ada" {
		t.Fatalf("expected Ada, got %+v", u)
	}
	if u.Status != "active" || u.AccessLevel != "user" {
		t.Errorf("expected defaults applied, got status=%q level=%q", u.Status, u.AccessLevel)
	}

	if u, _ := us.LookupActiveUser(ctx, "999"); u != nil {
		t.Error("unknown card must resolve to nil")
	}
}

func TestUserStore_InactiveUserIsNotActive(t *testing.T) {
	conn := openTestDB(t)
	us := sqlite.NewUserStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if err := us.AddUser(ctx, store.User{CardID: "42", Name: "Bob", Status: "disabled"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	u, err := us.LookupActiveUser(ctx, "42")
	if err != nil {
		t.Fatalf("LookupActiveUser: %v", err)
	}
	if u != nil {
		t.Error("disabled user must be indistinguishable from an unknown card")
	}
}

func TestUserStore_DuplicateAdd(t *testing.T) {
	conn := openTestDB(t)
	us := sqlite.NewUserStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if err := us.AddUser(ctx, store.User{CardID: "7", Name: "A"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if err := us.AddUser(ctx, store.User{CardID: "7", Name: "B"}); !errors.Is(err, store.ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}
}

func TestUserStore_RecordAccess(t *testing.T) {
	conn := openTestDB(t)
	us := sqlite.NewUserStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	if err := us.AddUser(ctx, store.User{CardID: "7", Name: "A"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := us.RecordAccess(ctx, "7", at); err != nil {
		t.Fatalf("RecordAccess: %v", err)
	}
	u, _ := us.LookupActiveUser(ctx, "7")
	if u.LastAccess == nil || !u.LastAccess.Equal(at) {
		t.Errorf("expected last access %v, got %v", at, u.LastAccess)
	}

	if err := us.RecordAccess(ctx, "nope", at); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserStore_ApproveRequest(t *testing.T) {
	conn := openTestDB(t)
	us := sqlite.NewUserStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	req := store.AccessRequest{CardID: "555", Name: "Carol", Department: "Ops"}
	if err := us.AddPendingRequest(ctx, req); err != nil {
		t.Fatalf("AddPendingRequest: %v", err)
	}
	if r, _ := us.LookupPendingRequest(ctx, "555"); r == nil || r.Name != "Carol" {
		t.Fatalf("expected pending request for 555, got %+v", r)
	}

	if err := us.ApproveRequest(ctx, "555", "user"); err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}
	if u, _ := us.LookupActiveUser(ctx, "555"); u == nil || u.Name != "Carol" || u.Department != "Ops" {
		t.Fatalf("expected approved active user, got %+v", u)
	}
	if r, _ := us.LookupPendingRequest(ctx, "555"); r != nil {
		t.Error("approved request must leave the pending set")
	}

	if err := us.ApproveRequest(ctx, "555", "user"); !errors.Is(err, store.ErrRequestNotFound) {
		t.Errorf("expected ErrRequestNotFound on re-approve, got %v", err)
	}
}

func TestUserStore_RemovePreservesScanEvents(t *testing.T) {
	conn := openTestDB(t)
	writer := newTestWriter(t, conn)
	us := sqlite.NewUserStore(conn, writer)
	es := sqlite.NewScanEventStore(conn, writer)
	ctx := context.Background()

	if err := us.AddUser(ctx, store.User{CardID: "888", Name: "Dan"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := es.Append(ctx, store.ScanEventRecord{CardID: "888", Result: store.ResultScan}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	if err := us.RemoveUser(ctx, "888"); err != nil {
		t.Fatalf("RemoveUser: %v", err)
	}
	if u, _ := us.LookupActiveUser(ctx, "888"); u != nil {
		t.Error("removed user must not authorize")
	}
	n, err := es.CountForCard(ctx, "888")
	if err != nil {
		t.Fatalf("CountForCard: %v", err)
	}
	if n != 3 {
		t.Errorf("audit rows must outlive the account: expected 3, got %d", n)
	}
}
