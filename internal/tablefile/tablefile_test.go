package tablefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	for _, enc := range []string{"utf-8", "windows-1252", "cp1252", "ISO-8859-1"} {
		t.Run(enc, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "table.csv")
			in := &Table{
				Header: []string{"a", "b"},
				Rows: [][]string{
					{"1", "café, \"quoted\"\nnext line"},
					{"2", ""},
				},
			}

			if err := Write(path, enc, in); err != nil {
				t.Fatalf("Write: %v", err)
			}
			out, err := Read(path, enc)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if diff := cmp.Diff(in, out); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWrite_ReplacesUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	in := &Table{Header: []string{"text"}, Rows: [][]string{{"smile 😀"}}}

	if err := Write(path, "windows-1252", in); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := Read(path, "windows-1252")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := out.Rows[0][0]; got == "smile 😀" || got[:6] != "smile " {
		t.Errorf("expected emoji replaced, got %q", got)
	}
}

func TestWrite_KeepsOldFileOnEncodingError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	if err := os.WriteFile(path, []byte("a\nold\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Write(path, "no-such-encoding", &Table{Header: []string{"a"}}); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "a\nold\n" {
		t.Errorf("existing file modified: %q", data)
	}
}

func TestRead_BOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bom.csv")
	if err := os.WriteFile(path, []byte("\xef\xbb\xbfa,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, err := Read(path, "utf-8")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if tbl.Column("a") != 0 || tbl.Column("b") != 1 {
		t.Errorf("header not parsed cleanly: %q", tbl.Header)
	}
}

func TestRead_ShortRecordsPadded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.csv")
	if err := os.WriteFile(path, []byte("a,b,c\n1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, err := Read(path, "")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(tbl.Rows[0]) != 3 {
		t.Errorf("expected padded record, got %q", tbl.Rows[0])
	}
}

func TestColumns(t *testing.T) {
	tbl := &Table{Header: []string{"x", "y"}}
	idx, err := tbl.Columns("y", "x")
	if err != nil {
		t.Fatal(err)
	}
	if idx[0] != 1 || idx[1] != 0 {
		t.Errorf("Columns = %v", idx)
	}
	if _, err := tbl.Columns("z"); err == nil {
		t.Error("expected error for missing column")
	}
}

func TestEncoding_Unknown(t *testing.T) {
	if _, err := Encoding("klingon-8"); err == nil {
		t.Fatal("expected error")
	}
}
