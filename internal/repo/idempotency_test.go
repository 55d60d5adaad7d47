package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/genai-studio/internal/domain"
)

const scope = domain.IdempotencyScopePaymentOrder

func TestGetIdempotency_EmptyKey_ReturnsNotFound(t *testing.T) {
	db := newRepoDB(t)
	rec, err := GetIdempotency(context.Background(), db, 1, scope, "   ", time.Now())
	if rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for empty key, got (%v, %v)", rec, err)
	}
}

func TestIdempotency_CreateGetDuplicateExpire(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, 1, scope, "k1", "PP-1", 201, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, 1, scope, "k1", "PP-2", 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := GetIdempotency(ctx, db, 1, scope, "k1", time.Now().UTC())
	if err != nil || got.ID != rec.ID || got.ResourceID != "PP-1" {
		t.Fatalf("get: %+v err=%v", got, err)
	}
	if _, err := GetIdempotency(ctx, db, 2, scope, "k1", time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user must miss, got %v", err)
	}

	later := time.Now().UTC().Add(2 * time.Hour)
	if _, err := GetIdempotency(ctx, db, 1, scope, "k1", later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record must miss, got %v", err)
	}
	n, err := DeleteExpiredIdempotency(ctx, db, later)
	if err != nil || n != 1 {
		t.Fatalf("delete expired: n=%d err=%v", n, err)
	}
}
