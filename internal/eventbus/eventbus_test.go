package eventbus

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
)

func TestSubscribe_ReceivesPublishedEvent(t *testing.T) {
	bus := New(4)
	ch, unsubscribe := bus.Subscribe("test")
	defer unsubscribe()

	targetID := uuid.New()
	bus.Publish(domain.ChangeEvent{TargetID: targetID, VersionNumber: 2})

	select {
	case evt := <-ch:
		if evt.TargetID != targetID {
			t.Fatalf("unexpected target id: %v", evt.TargetID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublish_PreservesOrderPerSubscriber(t *testing.T) {
	bus := New(8)
	ch, unsubscribe := bus.Subscribe("test")
	defer unsubscribe()

	for i := 1; i <= 5; i++ {
		bus.Publish(domain.ChangeEvent{VersionNumber: i})
	}

	for i := 1; i <= 5; i++ {
		select {
		case evt := <-ch:
			if evt.VersionNumber != i {
				t.Fatalf("expected version %d, got %d", i, evt.VersionNumber)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestPublish_DropsOldestOnOverflow(t *testing.T) {
	bus := New(2)
	_, unsubscribe := bus.Subscribe("slow")
	defer unsubscribe()

	for i := 1; i <= 5; i++ {
		bus.Publish(domain.ChangeEvent{VersionNumber: i})
	}

	if dropped := bus.DroppedCount("slow"); dropped == 0 {
		t.Fatal("expected some events to be dropped once the buffer overflowed")
	}
}

func TestSubscribe_MultipleSubscribersEachGetTheEvent(t *testing.T) {
	bus := New(4)
	chA, unsubA := bus.Subscribe("a")
	defer unsubA()
	chB, unsubB := bus.Subscribe("b")
	defer unsubB()

	bus.Publish(domain.ChangeEvent{VersionNumber: 1})

	for _, ch := range []<-chan domain.ChangeEvent{chA, chB} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event on one subscriber")
		}
	}
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	bus := New(4)
	ch, unsubscribe := bus.Subscribe("test")
	unsubscribe()

	_, ok := <-ch
	if ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}
