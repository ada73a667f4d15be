package queue

import "testing"

func TestParseStatus(t *testing.T) {
	cases := []struct {
		input string
		want  Status
		ok    bool
	}{
		{"pending", StatusPending, true},
		{" Uploading ", StatusUploading, true},
		{"CANCELLED", StatusCancelled, true},
		{"", "", false},
		{"ripping", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseStatus(tc.input)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q, %v", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusCancelled}
	for _, status := range terminal {
		if !IsTerminal(status) {
			t.Errorf("expected %s to be terminal", status)
		}
	}
	active := []Status{StatusPending, StatusValidating, StatusProcessing, StatusUploading}
	for _, status := range active {
		if IsTerminal(status) {
			t.Errorf("expected %s to be non-terminal", status)
		}
	}
}

func TestSetProgressIsMonotoneAndCapped(t *testing.T) {
	item := &Item{Status: StatusUploading}

	item.SetProgress(40)
	if item.Progress != 40 {
		t.Fatalf("expected 40, got %d", item.Progress)
	}

	// Progress never moves backwards.
	item.SetProgress(25)
	if item.Progress != 40 {
		t.Fatalf("expected progress to hold at 40, got %d", item.Progress)
	}

	// Progress stays below 100 until completion is confirmed.
	item.SetProgress(150)
	if item.Progress != 99 {
		t.Fatalf("expected cap at 99, got %d", item.Progress)
	}

	item.SetCompleted("remote-1", "https://files.example/remote-1")
	if item.Status != StatusCompleted || item.Progress != 100 {
		t.Fatalf("unexpected completion state: %#v", item)
	}
	if item.RemoteID != "remote-1" {
		t.Fatalf("expected remote receipt, got %q", item.RemoteID)
	}
}

func TestResetForRetry(t *testing.T) {
	item := &Item{
		Status:       StatusFailed,
		Progress:     60,
		ErrorMessage: "connection reset",
		RemoteID:     "stale",
		RemoteURL:    "https://files.example/stale",
		Attempts:     1,
		DerivedJSON:  `{"width":800}`,
	}

	item.ResetForRetry()

	if item.Status != StatusPending {
		t.Fatalf("expected pending, got %s", item.Status)
	}
	if item.Progress != 0 || item.ErrorMessage != "" {
		t.Fatalf("expected progress and error cleared: %#v", item)
	}
	if item.RemoteID != "" || item.RemoteURL != "" {
		t.Fatalf("expected stale receipt cleared: %#v", item)
	}
	if item.Attempts != 2 {
		t.Fatalf("expected attempt count bumped, got %d", item.Attempts)
	}
	if item.Derived()["width"] != float64(800) {
		t.Fatal("expected derived metadata preserved across retry")
	}
}

func TestMergeDerivedOverwritesExistingKeys(t *testing.T) {
	item := &Item{}
	if err := item.MergeDerived(map[string]any{"width": 100, "thumbnail": "data:image/jpeg;base64,AAAA"}); err != nil {
		t.Fatalf("MergeDerived failed: %v", err)
	}
	if err := item.MergeDerived(map[string]any{"width": 200}); err != nil {
		t.Fatalf("second MergeDerived failed: %v", err)
	}

	derived := item.Derived()
	if derived["width"] != float64(200) {
		t.Fatalf("expected overwrite, got %v", derived["width"])
	}
	if derived["thumbnail"] != "data:image/jpeg;base64,AAAA" {
		t.Fatalf("expected existing key preserved, got %v", derived["thumbnail"])
	}
}

func TestTagsRoundTripFiltersEmpties(t *testing.T) {
	item := &Item{}
	if err := item.SetTags([]string{" go ", "", "go", "cli"}); err != nil {
		t.Fatalf("SetTags failed: %v", err)
	}
	tags := item.Tags()
	if len(tags) != 2 || tags[0] != "go" || tags[1] != "cli" {
		t.Fatalf("unexpected tags: %v", tags)
	}

	if err := item.SetTags(nil); err != nil {
		t.Fatalf("SetTags(nil) failed: %v", err)
	}
	if item.Tags() != nil {
		t.Fatalf("expected no tags, got %v", item.Tags())
	}
}
