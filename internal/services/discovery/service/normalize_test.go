package service

import "testing"

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"HTTPS://Tax.Example/Docs/", "https://tax.example/Docs", true},
		{"https://tax.example:443/a", "https://tax.example/a", true},
		{"http://tax.example:80/a", "http://tax.example/a", true},
		{"http://tax.example:8080/a", "http://tax.example:8080/a", true},
		{"https://tax.example/a#section-3", "https://tax.example/a", true},
		{"https://tax.example/", "https://tax.example/", true},
		{"  https://tax.example/a  ", "https://tax.example/a", true},
		{"ftp://tax.example/a", "", false},
		{"mailto:someone@tax.example", "", false},
		{"/relative/only", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := NormalizeURL(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("NormalizeURL(%q) = %q,%v want %q,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestDedupeLinks(t *testing.T) {
	got := DedupeLinks([]string{
		"https://tax.example/a",
		"https://TAX.example/a/", // same after normalization
		"https://tax.example/b",
		"https://other.example/x", // off-domain
		"not a url",
	}, "tax.example")

	want := []string{"https://tax.example/a", "https://tax.example/b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDedupeLinksWWWTransparent(t *testing.T) {
	got := DedupeLinks([]string{"https://www.tax.example/a"}, "tax.example")
	if len(got) != 1 {
		t.Fatalf("www host should match bare domain, got %v", got)
	}
}
