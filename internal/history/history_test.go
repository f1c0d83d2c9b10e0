package history

import (
	"context"
	"testing"
	"time"
)

func TestOpenMemory(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	var count int
	if err := d.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		t.Errorf("runs table missing: %v", err)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate() error: %v", err)
	}
}

func TestRecordAndRecent(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := d.Record(ctx, Run{
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Duration:  1500 * time.Millisecond,
			Trigger:   TriggerRebuild,
			Scheduled: 4,
			Succeeded: 3,
			Failed:    1,
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	runs, err := d.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Recent returned %d runs, want 2", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Errorf("runs not newest first: %v then %v", runs[0].StartedAt, runs[1].StartedAt)
	}
	if runs[0].Duration != 1500*time.Millisecond {
		t.Errorf("duration = %v, want 1.5s", runs[0].Duration)
	}
	if runs[0].Trigger != TriggerRebuild {
		t.Errorf("trigger = %q, want rebuild", runs[0].Trigger)
	}
	if runs[0].Succeeded != 3 || runs[0].Failed != 1 {
		t.Errorf("counts = (%d, %d), want (3, 1)", runs[0].Succeeded, runs[0].Failed)
	}
}

func TestRecordGeneratesID(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	id, err := d.Record(context.Background(), Run{Trigger: TriggerWatch})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id == "" {
		t.Error("Record returned empty id")
	}
}

func TestRecordRejectsUnknownTrigger(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if _, err := d.Record(context.Background(), Run{Trigger: "cron"}); err == nil {
		t.Error("expected CHECK constraint error for unknown trigger")
	}
}
