package journal

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMemoryStoreRecordAndGet(t *testing.T) {
	store := NewMemoryStore()
	record := &TradeRecord{
		Protocol:  "liquidityPool",
		FromToken: "0x1::aptos_coin::AptosCoin",
		ToToken:   "0x1::usdc::USDC",
		Amount:    "1000",
		Status:    StatusSubmitted,
		TxHash:    "0xdeadbeef",
	}
	if err := store.Record(context.Background(), record); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if record.ID == "" {
		t.Fatal("expected an ID to be assigned")
	}
	if record.CreatedAt == 0 {
		t.Fatal("expected CreatedAt to be set")
	}

	got, err := store.Get(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TxHash != "0xdeadbeef" || got.Status != StatusSubmitted {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestMemoryStoreGetUnknown(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrTradeNotFound) {
		t.Fatalf("expected ErrTradeNotFound, got %v", err)
	}
}

func TestMemoryStoreRejectsMissingStatus(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Record(context.Background(), &TradeRecord{Protocol: "pancake"}); err == nil {
		t.Fatal("expected error for record without status")
	}
	if err := store.Record(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil record")
	}
}

func TestMemoryStoreListLatestNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	for _, id := range []string{"a", "b", "c"} {
		err := store.Record(context.Background(), &TradeRecord{ID: id, Status: StatusSubmitted})
		if err != nil {
			t.Fatalf("Record %s: %v", id, err)
		}
	}

	latest, err := store.ListLatest(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListLatest: %v", err)
	}
	if len(latest) != 2 || latest[0].ID != "c" || latest[1].ID != "b" {
		t.Fatalf("unexpected order %+v", latest)
	}

	all, err := store.ListLatest(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListLatest(0): %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected all 3 records, got %d", len(all))
	}
}

func TestMemoryStoreEvictsOldestPastCap(t *testing.T) {
	store := NewMemoryStore()
	total := maxMemoryRecords + 5
	for i := 0; i < total; i++ {
		err := store.Record(context.Background(), &TradeRecord{
			ID:     fmt.Sprintf("trade-%04d", i),
			Status: StatusSubmitted,
		})
		if err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	all, err := store.ListLatest(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListLatest: %v", err)
	}
	if len(all) != maxMemoryRecords {
		t.Fatalf("expected window of %d records, got %d", maxMemoryRecords, len(all))
	}
	if all[0].ID != fmt.Sprintf("trade-%04d", total-1) {
		t.Fatalf("unexpected newest record %q", all[0].ID)
	}

	if _, err := store.Get(context.Background(), "trade-0000"); !errors.Is(err, ErrTradeNotFound) {
		t.Fatalf("expected evicted record to be gone, got %v", err)
	}
	got, err := store.Get(context.Background(), fmt.Sprintf("trade-%04d", total-1))
	if err != nil {
		t.Fatalf("Get newest: %v", err)
	}
	if got.Status != StatusSubmitted {
		t.Fatalf("unexpected record %+v", got)
	}

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != total || stats.Submitted != total {
		t.Fatalf("expected lifetime counts to survive eviction, got %+v", stats)
	}
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore()
	records := []*TradeRecord{
		{Status: StatusSubmitted},
		{Status: StatusSubmitted},
		{Status: StatusFailed},
	}
	for _, record := range records {
		if err := store.Record(context.Background(), record); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 || stats.Submitted != 2 || stats.Failed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
