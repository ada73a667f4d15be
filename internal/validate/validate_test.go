package validate

import (
	"testing"
	"time"
)

func file(name string, size int64, mime string, modified time.Time) FileInfo {
	return FileInfo{
		Path:         "/tmp/" + name,
		Name:         name,
		Size:         size,
		MimeType:     mime,
		LastModified: modified,
	}
}

func TestValidateChecksRunInOrder(t *testing.T) {
	now := time.Now()
	constraints := Constraints{
		MaxFileSize:  1000,
		AllowedTypes: []string{"image/*"},
	}

	// Oversized and wrong type: the size check fires first.
	oversizedWrongType := file("big.pdf", 2000, "application/pdf", now)
	result := Validate([]FileInfo{oversizedWrongType}, nil, constraints)
	if len(result.Rejected) != 1 || result.Rejected[0].Reason != ReasonSizeExceeded {
		t.Fatalf("expected size rejection, got %#v", result.Rejected)
	}

	// Acceptable size but disallowed type.
	wrongType := file("doc.pdf", 500, "application/pdf", now)
	result = Validate([]FileInfo{wrongType}, nil, constraints)
	if len(result.Rejected) != 1 || result.Rejected[0].Reason != ReasonTypeNotAllowed {
		t.Fatalf("expected type rejection, got %#v", result.Rejected)
	}

	// Same identity as an existing upload.
	dup := file("photo.png", 500, "image/png", now)
	result = Validate([]FileInfo{dup}, []FileInfo{dup}, constraints)
	if len(result.Rejected) != 1 || result.Rejected[0].Reason != ReasonDuplicateFile {
		t.Fatalf("expected duplicate rejection, got %#v", result.Rejected)
	}
}

func TestValidateAcceptsWithinBatchUniqueFiles(t *testing.T) {
	now := time.Now()
	constraints := Constraints{MaxFileSize: 1 << 20, AllowedTypes: []string{"*/*"}}

	a := file("a.png", 100, "image/png", now)
	b := file("b.png", 200, "image/png", now)
	result := Validate([]FileInfo{a, b}, nil, constraints)
	if len(result.Accepted) != 2 || len(result.Rejected) != 0 {
		t.Fatalf("expected both accepted, got %#v", result)
	}
}

func TestValidateCatchesDuplicatesWithinBatch(t *testing.T) {
	now := time.Now()
	constraints := Constraints{MaxFileSize: 1 << 20, AllowedTypes: []string{"*/*"}}

	a := file("same.png", 100, "image/png", now)
	result := Validate([]FileInfo{a, a}, nil, constraints)
	if len(result.Accepted) != 1 || len(result.Rejected) != 1 {
		t.Fatalf("expected one acceptance and one rejection, got %#v", result)
	}
	if result.Rejected[0].Reason != ReasonDuplicateFile {
		t.Fatalf("expected duplicate reason, got %s", result.Rejected[0].Reason)
	}
}

func TestKeyDistinguishesModificationTime(t *testing.T) {
	now := time.Now()
	a := file("same.png", 100, "image/png", now)
	b := file("same.png", 100, "image/png", now.Add(time.Second))
	if Key(a) == Key(b) {
		t.Fatal("expected differing modification times to produce different keys")
	}
}

func TestTypeAllowed(t *testing.T) {
	cases := []struct {
		mime    string
		allowed []string
		want    bool
	}{
		{"image/png", []string{"image/png"}, true},
		{"image/png", []string{"image/*"}, true},
		{"video/mp4", []string{"image/*"}, false},
		{"application/pdf", []string{"*/*"}, true},
		{"IMAGE/PNG", []string{"image/png"}, true},
		{"image/png", nil, true},
		{"image/png", []string{"image"}, false},
	}
	for _, tc := range cases {
		if got := TypeAllowed(tc.mime, tc.allowed); got != tc.want {
			t.Errorf("TypeAllowed(%q, %v) = %v, want %v", tc.mime, tc.allowed, got, tc.want)
		}
	}
}

func TestValidateZeroSizeCapAcceptsAnySize(t *testing.T) {
	now := time.Now()
	big := file("huge.bin", 1 << 40, "application/octet-stream", now)
	result := Validate([]FileInfo{big}, nil, Constraints{})
	if len(result.Accepted) != 1 {
		t.Fatalf("expected acceptance with no cap, got %#v", result)
	}
}
