package urlutil

import "testing"

func TestValidate(t *testing.T) {
	valid := []string{
		"http://example.com",
		"https://example.com/path",
	}
	for _, u := range valid {
		if err := ValidateURL(u); err != nil {
			t.Fatalf("expected valid, got error: %v", err)
		}
	}

	invalid := []string{"ftp://example.com", "//example.com", "http:///"}
	for _, u := range invalid {
		if err := ValidateURL(u); err == nil {
			t.Fatalf("expected invalid for %s", u)
		}
	}
}

func TestResolveURL(t *testing.T) {
	got := ResolveURL("https://www.ebay.com/mye/myebay/purchase", "/itm/111")
	if got != "https://www.ebay.com/itm/111" {
		t.Errorf("Expected resolved URL, got %s", got)
	}
	if got := ResolveURL("https://a.com/x", "https://b.com/y"); got != "https://b.com/y" {
		t.Errorf("Expected absolute href unchanged, got %s", got)
	}
}

func TestHostMatches(t *testing.T) {
	tests := []struct {
		url      string
		expected string
		want     bool
	}{
		{"https://www.ebay.com/mye/myebay/purchase", "ebay.com", true},
		{"https://ebay.com/itm/1", "www.ebay.com", true},
		{"https://signin.ebay.com/", "ebay.com", true},
		{"https://www.tcdb.com/ViewCollection.cfm", "ebay.com", false},
		{"https://notebay.com/", "ebay.com", false},
		{"file:///tmp/page.html", "ebay.com", false},
		{"anything", "", true},
	}
	for _, tt := range tests {
		if got := HostMatches(tt.url, tt.expected); got != tt.want {
			t.Errorf("HostMatches(%q, %q) = %v, want %v", tt.url, tt.expected, got, tt.want)
		}
	}
}
