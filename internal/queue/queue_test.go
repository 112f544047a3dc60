package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	q := NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs, err := q.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}

	want := TrainJob{StudentID: "s1", VideoPath: "uploads/s1.mp4"}
	if err := q.Publish(ctx, want); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-jobs:
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("job never arrived")
	}
}

func TestInMemoryPublishCancelled(t *testing.T) {
	q := NewInMemory(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Publish(ctx, TrainJob{StudentID: "s1"}); err == nil {
		t.Fatal("publish on a cancelled context must fail")
	}
}

func TestInMemoryConsumeStopsOnCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())

	jobs, err := q.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case _, open := <-jobs:
		if open {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel did not close on cancel")
	}
}
