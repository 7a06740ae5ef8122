package participant

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testClassifier() *Classifier {
	return NewClassifier(Config{
		AdvisingName:    "Science Advising",
		AdvisingAddress: "advising@science.example.edu",
		InternalDomains: []string{"example.edu", "@registrar.example.org"},
	})
}

func TestClassify(t *testing.T) {
	c := testClassifier()

	tests := []struct {
		name string
		line string
		want Role
	}{
		{"empty", "", Unknown},
		{"whitespace", "   ", Unknown},
		{"advising name", "From: Science Advising <noreply@x.com>", Advising},
		{"advising address", "advising@science.example.edu", Advising},
		{"internal domain", "To: Prof. Smith <smith@example.edu>", InternalOrganization},
		{"internal subdomain suffix", "registrar@registrar.example.org", InternalOrganization},
		{"student", "From: Jane Doe <jane.doe@gmail.com>", Student},
		{"display name only", "Jane Doe", Student},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.line); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestClassify_Stable(t *testing.T) {
	c := testClassifier()
	line := "From: someone <someone@example.edu>"
	first := c.Classify(line)
	for i := 0; i < 5; i++ {
		if got := c.Classify(line); got != first {
			t.Fatalf("Classify not stable: got %v then %v", first, got)
		}
	}
}

func TestClassify_NoInternalDomains(t *testing.T) {
	c := NewClassifier(Config{AdvisingAddress: "advising@u.edu"})
	if got := c.Classify("someone@u.edu"); got != Student {
		t.Errorf("expected student without internal domains, got %v", got)
	}
}

func TestParseRole(t *testing.T) {
	for code := 1; code <= 4; code++ {
		r, err := ParseRole(code)
		if err != nil {
			t.Fatalf("ParseRole(%d): %v", code, err)
		}
		if int(r) != code {
			t.Errorf("ParseRole(%d) = %d", code, r)
		}
	}
	if _, err := ParseRole(7); err == nil {
		t.Error("expected error for invalid role code")
	}
}

func TestReadDomains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domains.txt")
	if err := os.WriteFile(path, []byte("example.edu\n\n# comment\nalumni.example.edu \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadDomains(path)
	if err != nil {
		t.Fatalf("ReadDomains: %v", err)
	}
	want := []string{"example.edu", "alumni.example.edu"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadDomains mismatch (-want +got):\n%s", diff)
	}
}

func TestReadDomains_NotFound(t *testing.T) {
	if _, err := ReadDomains("/nonexistent/domains.txt"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
