package reconcile

import "testing"

func TestAreEqual_ImageCount(t *testing.T) {
	list := []any{float64(1), float64(2), float64(3)}
	keyed := map[string]any{"p1": float64(1), "p2": float64(2), "p3": float64(3)}

	if !AreEqual("Pictures", list, keyed) {
		t.Fatalf("expected 3 items to equal 3 keyed items")
	}
	if AreEqual("Pictures", []any{float64(1), float64(2)}, list) {
		t.Fatalf("expected 2 items to differ from 3")
	}
}

func TestAreEqual_CustomImageField(t *testing.T) {
	c := NewClassifier("Images", "Photos")
	a := []any{"https://a/1.jpg", "https://a/2.jpg"}
	b := []any{"https://b/x.jpg", "https://b/y.jpg"}

	if !c.AreEqual("Photos", a, b) {
		t.Fatalf("expected photos to compare by count")
	}
	if c.AreEqual("Pictures", a, b) {
		t.Fatalf("Pictures is not an image field for this classifier")
	}
}

func TestAreEqual_DescriptionFirstSentence(t *testing.T) {
	a := "Nice house. More details here."
	b := "Nice house. Different extra text."
	if !AreEqual("Description", a, b) {
		t.Fatalf("expected descriptions with the same opening sentence to match")
	}
	if AreEqual("Description", "Nice house. Same.", "Big house. Same.") {
		t.Fatalf("expected different opening sentences to differ")
	}
	if !AreEqual("Property Details", "Three beds! Garden.", "Three beds! Garage.") {
		t.Fatalf("expected details field to compare first sentence")
	}
}

func TestAreEqual_FirstSentenceNeedsBoundary(t *testing.T) {
	// "3.5" must not end the sentence.
	if AreEqual("Description", "Lot of 3.5 acres. Quiet.", "Lot of 3.9 acres. Quiet.") {
		t.Fatalf("decimal point should not terminate a sentence")
	}
}

func TestAreEqual_Nil(t *testing.T) {
	if AreEqual("Price", nil, "1") || AreEqual("Price", "1", nil) || AreEqual("Price", nil, nil) {
		t.Fatalf("nil never equals anything")
	}
}

func TestAreEqual_TrimmedString(t *testing.T) {
	if !AreEqual("Price", " 300000 ", float64(300000)) {
		t.Fatalf("expected trimmed string to match number")
	}
	if AreEqual("Price", "300000", "305000") {
		t.Fatalf("expected different prices to differ")
	}
	if !AreEqual("Beds", float64(3), "3") {
		t.Fatalf("expected 3 to equal \"3\"")
	}
}

func TestStringify(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{float64(300000), "300000"},
		{float64(2.5), "2.5"},
		{true, "true"},
		{[]any{"a", float64(1)}, "a,1"},
		{map[string]any{"b": float64(2), "a": "x"}, `{"a":"x","b":2}`},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := Stringify(tc.in); got != tc.want {
			t.Fatalf("Stringify(%v): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate("2024-03-01T10:15:00Z"); got != "2024-03-01 10:15" {
		t.Fatalf("unexpected RFC3339 format %q", got)
	}
	if got := FormatDate("2024-03-01 09:00:00"); got != "2024-03-01 09:00" {
		t.Fatalf("unexpected plain format %q", got)
	}
	if got := FormatDate("last tuesday"); got != "last tuesday" {
		t.Fatalf("expected unparseable value to pass through, got %q", got)
	}
}
