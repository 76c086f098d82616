package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNilNotifier_IsSafe(t *testing.T) {
	var n *RunNotifier

	evt := RunCompleted{
		RunID:         uuid.New(),
		StartedAt:     time.Now().Add(-time.Minute),
		CompletedAt:   time.Now(),
		PatientsTotal: 10,
		PatientsFused: 9,
	}

	if err := n.PublishRunCompleted(context.Background(), evt); err != nil {
		t.Fatalf("nil notifier PublishRunCompleted returned error: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("nil notifier Close returned error: %v", err)
	}
}
