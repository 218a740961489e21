package profile

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var testMarkers = Markers{Begin: "<!-- BEGIN EDITABLE -->", End: "<!-- END EDITABLE -->"}

const template = `<html>
<body>
<div class="profile">
<!-- BEGIN EDITABLE -->
<p>Your bio here</p>
<!-- END EDITABLE -->
</div>
</body>
</html>
`

func mustSplit(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := Split([]byte(s), testMarkers)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	return doc
}

func TestSplit(t *testing.T) {
	doc := mustSplit(t, template)

	want := []Segment{
		{Editable: false, Text: "<html>\n<body>\n<div class=\"profile\">\n<!-- BEGIN EDITABLE -->", StartLine: 1},
		{Editable: true, Text: "\n<p>Your bio here</p>\n", StartLine: 4},
		{Editable: false, Text: "<!-- END EDITABLE -->\n</div>\n</body>\n</html>\n", StartLine: 6},
	}
	if diff := cmp.Diff(want, doc.Segments); diff != "" {
		t.Errorf("Segments mismatch (-want +got):\n%s", diff)
	}
	if doc.Regions() != 1 {
		t.Errorf("Regions() = %d, want 1", doc.Regions())
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	src := "<p><!-- BEGIN EDITABLE -->inline<!-- END EDITABLE --></p>\n<ul>\n<!-- BEGIN EDITABLE -->\n<li>a</li>\n<!-- END EDITABLE -->\n</ul>"
	doc := mustSplit(t, src)

	var b strings.Builder
	for _, s := range doc.Segments {
		b.WriteString(s.Text)
	}
	if b.String() != src {
		t.Errorf("segments do not reassemble the input:\n%q", b.String())
	}
	if diff := cmp.Diff([]string{"inline", "\n<li>a</li>\n"}, doc.Editable()); diff != "" {
		t.Errorf("Editable() mismatch (-want +got):\n%s", diff)
	}
	if len(doc.Fixed()) != 3 {
		t.Errorf("Fixed() = %d segments, want 3", len(doc.Fixed()))
	}
}

func TestSplit_NoMarkers(t *testing.T) {
	doc := mustSplit(t, "<p>static</p>\n")
	if doc.Regions() != 0 || len(doc.Segments) != 1 {
		t.Errorf("Segments = %+v", doc.Segments)
	}
}

func TestSplit_MarkerErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantLine int
		wantMsg  string
	}{
		{"end before begin", "<div>\n<!-- END EDITABLE -->\n", 2, "outside"},
		{"nested begin", "<!-- BEGIN EDITABLE -->\nx\n<!-- BEGIN EDITABLE -->\n<!-- END EDITABLE -->", 3, "opened on line 1"},
		{"never closed", "a\n<!-- BEGIN EDITABLE -->\nbio\n", 2, "never closed"},
		{"stray end after region", "<!-- BEGIN EDITABLE -->x<!-- END EDITABLE -->\n<!-- END EDITABLE -->", 2, "outside"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split([]byte(tt.src), testMarkers)
			var merr MarkerError
			if !errors.As(err, &merr) {
				t.Fatalf("Split() error = %v, want MarkerError", err)
			}
			if merr.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", merr.Line, tt.wantLine)
			}
			if !strings.Contains(merr.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want containing %q", merr.Message, tt.wantMsg)
			}
		})
	}
}

func TestCompareFixed(t *testing.T) {
	tmpl := mustSplit(t, template)

	t.Run("edits inside the region only", func(t *testing.T) {
		page := strings.Replace(template, "<p>Your bio here</p>", "<p>Do Hai Son is a lecturer.</p>\n<p>Research: RIS.</p>", 1)
		if got := CompareFixed(tmpl, mustSplit(t, page)); len(got) != 0 {
			t.Errorf("CompareFixed() = %+v, want none", got)
		}
	})

	t.Run("changed markup before the region", func(t *testing.T) {
		page := strings.Replace(template, `<div class="profile">`, `<div class="profile wide">`, 1)
		got := CompareFixed(tmpl, mustSplit(t, page))
		want := []Mismatch{{
			Segment:  0,
			Line:     3,
			Expected: `<div class="profile">`,
			Actual:   `<div class="profile wide">`,
			Message:  "fixed markup changed in segment 1",
		}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("CompareFixed() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("changed markup after a grown region", func(t *testing.T) {
		page := strings.Replace(template, "<p>Your bio here</p>", "<p>Bio</p>\n<p>More</p>", 1)
		page = strings.Replace(page, "</body>", "</bodyx>", 1)
		got := CompareFixed(tmpl, mustSplit(t, page))
		if len(got) != 1 {
			t.Fatalf("CompareFixed() = %+v, want one mismatch", got)
		}
		if got[0].Segment != 1 || got[0].Line != 9 || got[0].Actual != "</bodyx>" {
			t.Errorf("mismatch = %+v", got[0])
		}
	})

	t.Run("region removed", func(t *testing.T) {
		page := "<html>\n<body>\n</body>\n</html>\n"
		got := CompareFixed(tmpl, mustSplit(t, page))
		if len(got) != 1 || got[0].Segment != -1 || !strings.Contains(got[0].Message, "0 editable regions, template has 1") {
			t.Errorf("CompareFixed() = %+v", got)
		}
	})

	t.Run("trailing newline dropped", func(t *testing.T) {
		page := strings.TrimSuffix(template, "\n")
		got := CompareFixed(tmpl, mustSplit(t, page))
		if len(got) != 1 || got[0].Segment != 1 {
			t.Errorf("CompareFixed() = %+v, want a mismatch in the last segment", got)
		}
	})
}

func TestCheckMarkup(t *testing.T) {
	tests := []struct {
		name      string
		fragment  string
		startLine int
		want      []MarkupProblem
	}{
		{"balanced", "<p>Hello <b>world</b></p>", 1, nil},
		{"void and self-closing", `<img src="me.png"><br/><hr>`, 1, nil},
		{"implied end tags", "<ul><li>a<li>b</ul>", 1, nil},
		{
			"closed by outer tag", "<div><span>x</div>", 1,
			[]MarkupProblem{{Line: 1, Message: "<span> is closed by </div> on line 1"}},
		},
		{
			"stray end tag", "text</div>", 1,
			[]MarkupProblem{{Line: 1, Message: "</div> has no matching <div>"}},
		},
		{
			"never closed", "<div>\n<p>x\n", 1,
			[]MarkupProblem{{Line: 1, Message: "<div> is never closed"}},
		},
		{
			"line offset", "\n\n<section>", 4,
			[]MarkupProblem{{Line: 6, Message: "<section> is never closed"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckMarkup(tt.fragment, tt.startLine)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("CheckMarkup() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func TestImageInfo(t *testing.T) {
	dir := t.TempDir()
	square := filepath.Join(dir, "DoHaiSon.png")
	wide := filepath.Join(dir, "Wide.png")
	writePNG(t, square, 12, 12)
	writePNG(t, wide, 20, 10)

	w, h, format, err := ImageInfo(square)
	if err != nil {
		t.Fatalf("ImageInfo() error = %v", err)
	}
	if w != 12 || h != 12 || format != "png" || !IsSquare(w, h) {
		t.Errorf("ImageInfo(square) = %d x %d %s", w, h, format)
	}

	w, h, _, err = ImageInfo(wide)
	if err != nil {
		t.Fatal(err)
	}
	if IsSquare(w, h) {
		t.Errorf("IsSquare(%d, %d) = true", w, h)
	}
}

func TestImageInfo_NotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.png")
	if err := os.WriteFile(path, []byte("not a png"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := ImageInfo(path); err == nil {
		t.Error("ImageInfo() on garbage should fail")
	}
}

func TestIsSquare_Zero(t *testing.T) {
	if IsSquare(0, 0) {
		t.Error("IsSquare(0, 0) = true")
	}
}
