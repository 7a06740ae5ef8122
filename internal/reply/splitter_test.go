package reply

import (
	"testing"
	"time"

	"github.com/MikeSquared-Agency/mailpairs/internal/header"
	"github.com/google/go-cmp/cmp"
)

func TestSplit_NoMarkers(t *testing.T) {
	body := "Hello, I need help\nwith my registration.\n"
	got := Split(body)

	want := []Segment{{Body: body}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Split mismatch (-want +got):\n%s", diff)
	}
}

func TestSplit_OnWrote(t *testing.T) {
	body := "Thanks, see attached\n\n" +
		"On Mon, Mar 4, 2024 at 10:15 AM Jane Doe <jane@gmail.com> wrote:\n" +
		"> Hello, I need help\n"

	got := Split(body)
	want := []Segment{
		{Body: "Thanks, see attached", Position: 0},
		{
			Header:   "On Mon, Mar 4, 2024 at 10:15 AM Jane Doe <jane@gmail.com> wrote:",
			Body:     "Hello, I need help",
			Position: 1,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Split mismatch (-want +got):\n%s", diff)
	}

	f, err := header.NewParser(time.UTC).Parse(got[1].Header)
	if err != nil {
		t.Fatalf("Parse header: %v", err)
	}
	if f.From != "Jane Doe <jane@gmail.com>" {
		t.Errorf("inferred sender = %q, want %q", f.From, "Jane Doe <jane@gmail.com>")
	}
}

func TestSplit_WrappedWroteLine(t *testing.T) {
	body := "Sure.\n\n" +
		"On Mon, Mar 4, 2024 at 10:15 AM Jane Doe <\n" +
		"jane@gmail.com> wrote:\n" +
		"> Can we meet?\n"

	got := Split(body)
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(got), got)
	}
	if got[1].Header != "On Mon, Mar 4, 2024 at 10:15 AM Jane Doe <\njane@gmail.com> wrote:" {
		t.Errorf("Header = %q", got[1].Header)
	}
	if got[1].Body != "Can we meet?" {
		t.Errorf("Body = %q", got[1].Body)
	}
}

func TestSplit_NestedChain(t *testing.T) {
	body := "Third reply\n\n" +
		"On 4 March 2024 14:30, Science Advising wrote:\n" +
		"> Second reply\n" +
		">\n" +
		"> On 3 March 2024 09:00, Jane Doe wrote:\n" +
		">> First message\n"

	got := Split(body)
	if len(got) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(got), got)
	}

	bodies := []string{got[0].Body, got[1].Body, got[2].Body}
	if diff := cmp.Diff([]string{"Third reply", "Second reply", "First message"}, bodies); diff != "" {
		t.Errorf("bodies mismatch (-want +got):\n%s", diff)
	}
	for i, s := range got {
		if s.Position != i {
			t.Errorf("segment %d has position %d", i, s.Position)
		}
	}
	if got[2].Header != "On 3 March 2024 09:00, Jane Doe wrote:" {
		t.Errorf("nested header = %q", got[2].Header)
	}
}

func TestSplit_OutlookBlock(t *testing.T) {
	body := "Please see below.\n\n" +
		"________________________________\n" +
		"From: Jane Doe <jane@gmail.com>\n" +
		"Sent: Monday, March 4, 2024 10:15 AM\n" +
		"To: Science Advising <advising@science.example.edu>\n" +
		"Subject: Schedule question\n" +
		"\n" +
		"Can I drop a course after the deadline?\n"

	got := Split(body)
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(got), got)
	}
	if got[0].Body != "Please see below." {
		t.Errorf("segment 0 body = %q", got[0].Body)
	}
	if got[1].Body != "Can I drop a course after the deadline?" {
		t.Errorf("segment 1 body = %q", got[1].Body)
	}

	f, err := header.NewParser(time.UTC).Parse(got[1].Header)
	if err != nil {
		t.Fatalf("Parse header: %v", err)
	}
	if f.From != "Jane Doe <jane@gmail.com>" || f.Subject != "Schedule question" {
		t.Errorf("unexpected header fields: %+v", f)
	}
}

func TestSplit_OriginalMessageSeparator(t *testing.T) {
	body := "Forwarding this.\n" +
		"-----Original Message-----\n" +
		"From: Jane Doe\n" +
		"Date: 2024-03-04 10:15\n" +
		"\n" +
		"Hi there\n"

	got := Split(body)
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(got), got)
	}
	if got[1].Body != "Hi there" {
		t.Errorf("Body = %q", got[1].Body)
	}
}

func TestSplit_FromLineWithoutHeaderBlock(t *testing.T) {
	body := "From: the registrar's point of view this is fine.\nThanks"
	got := Split(body)
	if len(got) != 1 {
		t.Fatalf("expected a single segment, got %d: %+v", len(got), got)
	}
}

func TestSanitizeHeader(t *testing.T) {
	got := sanitizeHeader("On Mon, 4 Mar 2024, José wrote:")
	if got != "On Mon, 4 Mar 2024, Jos wrote:" {
		t.Errorf("sanitizeHeader = %q", got)
	}
	if got := sanitizeHeader("éè"); got != "" {
		t.Errorf("expected empty header, got %q", got)
	}
}

func TestSplit_StripsNonASCIIFromHeader(t *testing.T) {
	body := "Top\n\nOn 4 Mar 2024, ééé wrote:\n> quoted\n"
	got := Split(body)
	if len(got) != 2 || got[1].Header != "On 4 Mar 2024,  wrote:" {
		t.Fatalf("unexpected segments: %+v", got)
	}
}

func TestSplit_WroteInProse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"sentence", "Hi,\nHere is what my professor wrote:\nYou must retake the course.\nCan I appeal?"},
		{"quoted sentence", "Hi,\n> Here is what my professor wrote:\n> You must retake the course.\nCan I appeal?"},
		{"bare", "Hi,\nwrote:\nsomething"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.body)
			if len(got) != 1 {
				t.Fatalf("expected a single segment, got %d: %+v", len(got), got)
			}
			if got[0].Body != tt.body {
				t.Errorf("Body = %q, want %q", got[0].Body, tt.body)
			}
		})
	}
}

func TestSplit_WroteWithDateNoOn(t *testing.T) {
	body := "Sure.\n\n2024-03-04 10:15 GMT Jane Doe <jane@gmail.com> wrote:\n> Can I drop?\n"
	got := Split(body)
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(got), got)
	}
	if got[1].Body != "Can I drop?" {
		t.Errorf("Body = %q", got[1].Body)
	}
}
