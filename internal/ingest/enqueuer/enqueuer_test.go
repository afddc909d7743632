package enqueuer

import (
	"context"
	"fmt"
	"testing"

	"github.com/calmhive/content-archive/internal/ingest"
	"github.com/calmhive/content-archive/pkg/kafka"
)

// fakeProducer records every batch and can fail selected chunks.
type fakeProducer struct {
	batches   [][]kafka.Event
	failCalls map[int]bool
}

func (f *fakeProducer) PublishBatch(ctx context.Context, events []kafka.Event) error {
	call := len(f.batches)
	f.batches = append(f.batches, events)
	if f.failCalls[call] {
		return fmt.Errorf("broker unavailable")
	}
	return nil
}

func keys(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("posts/doc-%04d.json", i)
	}
	return out
}

func TestEnqueueKeysChunking(t *testing.T) {
	cases := []struct {
		name       string
		total      int
		chunkSize  int
		wantChunks int
	}{
		{"exact multiple", 1000, 100, 10},
		{"remainder chunk", 250, 100, 3},
		{"single short page", 42, 100, 1},
		{"empty page", 0, 100, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			producer := &fakeProducer{}
			e := New(producer, tc.chunkSize)

			res := e.EnqueueKeys(context.Background(), keys(tc.total))
			if len(producer.batches) != tc.wantChunks {
				t.Errorf("chunks = %d, want %d", len(producer.batches), tc.wantChunks)
			}
			if res.Queued != tc.total {
				t.Errorf("queued = %d, want %d", res.Queued, tc.total)
			}
			if res.FailedChunks != 0 {
				t.Errorf("failed chunks = %d, want 0", res.FailedChunks)
			}
			for i, batch := range producer.batches {
				if len(batch) > tc.chunkSize {
					t.Errorf("chunk %d has %d events, exceeds limit %d", i, len(batch), tc.chunkSize)
				}
			}
		})
	}
}

func TestEnqueueKeysPreservesListingOrder(t *testing.T) {
	producer := &fakeProducer{}
	e := New(producer, 2)

	e.EnqueueKeys(context.Background(), []string{"a", "b", "c", "d", "e"})

	var got []string
	for _, batch := range producer.batches {
		for _, event := range batch {
			doc, ok := event.Value.(ingest.DocumentMessage)
			if !ok {
				t.Fatalf("event value = %T, want DocumentMessage", event.Value)
			}
			got = append(got, doc.ObjectKey)
		}
	}
	want := []string{"a", "b", "c", "d", "e"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestEnqueueKeysBestEffortOnChunkFailure(t *testing.T) {
	producer := &fakeProducer{failCalls: map[int]bool{1: true}}
	e := New(producer, 100)

	res := e.EnqueueKeys(context.Background(), keys(300))

	if len(producer.batches) != 3 {
		t.Errorf("chunks attempted = %d, want all 3 despite failure", len(producer.batches))
	}
	if res.Queued != 200 {
		t.Errorf("queued = %d, want 200", res.Queued)
	}
	if res.FailedChunks != 1 {
		t.Errorf("failed chunks = %d, want 1", res.FailedChunks)
	}
	if res.FailedKeys != 100 {
		t.Errorf("failed keys = %d, want 100", res.FailedKeys)
	}
}
