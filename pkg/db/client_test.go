package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/orderstock-backend/pkg/errors"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:db_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := NewFromConn(db, 0)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithTx_SkipsLockTimeoutOnSQLite(t *testing.T) {
	client := NewFromConn(newTestDB(t), 1500*time.Millisecond)
	if err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "ok"}).Error
	}); err != nil {
		t.Fatalf("expected lock timeout to be ignored on sqlite: %v", err)
	}
}

func TestWithTx_PreservesTypedErrors(t *testing.T) {
	client := NewFromConn(newTestDB(t), 0)
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough")
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected typed error to survive, got %v", err)
	}
}

func TestPing(t *testing.T) {
	client := NewFromConn(newTestDB(t), 0)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), "") {
		t.Fatal("expected pgx unique violation")
	}
	if !IsUniqueViolation(pgErr, "orders_order_number_key") {
		t.Fatal("expected constraint match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatal("foreign key violation is not a unique violation")
	}
	if !IsUniqueViolation(&pq.Error{Code: "23505"}, "") {
		t.Fatal("expected pq unique violation")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: orders.order_number"), "order_number") {
		t.Fatal("expected sqlite unique violation")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil is not a violation")
	}
}

func TestClassifyError_MapsContentionToBusy(t *testing.T) {
	for _, code := range []string{"55P03", "40P01", "40001", "57014"} {
		err := ClassifyError(&pgconn.PgError{Code: code})
		if !pkgerrors.IsCode(err, pkgerrors.CodeBusy) {
			t.Fatalf("code %s expected BUSY, got %v", code, err)
		}
	}
	if !pkgerrors.IsCode(ClassifyError(errors.New("database is locked")), pkgerrors.CodeBusy) {
		t.Fatal("expected sqlite lock to map to BUSY")
	}

	plain := errors.New("boom")
	if got := ClassifyError(plain); got != plain {
		t.Fatalf("expected plain error passthrough, got %v", got)
	}
	if got := ClassifyError(context.Canceled); !errors.Is(got, context.Canceled) {
		t.Fatalf("expected cancellation passthrough, got %v", got)
	}
}
