package domain

import (
	"errors"
	"testing"
	"time"
)

func TestDeriveSiteInfoFromURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected SiteInfo
	}{
		{
			name:  "path with first segment",
			input: "https://www.tum.de/en/about/campus",
			expected: SiteInfo{
				DomainURL:   "https://www.tum.de/en/",
				HostName:    "tum",
				DomainLimit: "www.tum.de/en/",
			},
		},
		{
			name:  "bare host",
			input: "example.com",
			expected: SiteInfo{
				DomainURL:   "https://example.com/",
				HostName:    "example",
				DomainLimit: "example.com/",
			},
		},
		{
			name:  "root path with query",
			input: "http://WWW.BMW.com/?ref=home",
			expected: SiteInfo{
				DomainURL:   "https://www.bmw.com/",
				HostName:    "bmw",
				DomainLimit: "www.bmw.com/",
			},
		},
		{
			name:  "subdomain keeps first label",
			input: "https://docs.github.com/en/get-started",
			expected: SiteInfo{
				DomainURL:   "https://docs.github.com/en/",
				HostName:    "docs",
				DomainLimit: "docs.github.com/en/",
			},
		},
		{
			name:  "port is dropped",
			input: "http://localhost:3000/app",
			expected: SiteInfo{
				DomainURL:   "https://localhost/app/",
				HostName:    "localhost",
				DomainLimit: "localhost/app/",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveSiteInfoFromURL(tt.input)
			if err != nil {
				t.Fatalf("DeriveSiteInfoFromURL(%q) error = %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("DeriveSiteInfoFromURL(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDeriveSiteInfoFromURLIsIdempotent(t *testing.T) {
	inputs := []string{
		"https://www.tum.de/en/about",
		"example.com",
		"https://shop.example.co.uk/de/products?id=4",
		"http://www.bmw.com/en-au/home.html",
	}

	for _, in := range inputs {
		first, err := DeriveSiteInfoFromURL(in)
		if err != nil {
			t.Fatalf("DeriveSiteInfoFromURL(%q) error = %v", in, err)
		}
		second, err := DeriveSiteInfoFromURL(first.DomainURL)
		if err != nil {
			t.Fatalf("DeriveSiteInfoFromURL(%q) error = %v", first.DomainURL, err)
		}
		if first != second {
			t.Errorf("not idempotent for %q: %+v then %+v", in, first, second)
		}
	}
}

func TestDeriveSiteInfoFromURLInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "https://", "http://%zz"} {
		if _, err := DeriveSiteInfoFromURL(in); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("DeriveSiteInfoFromURL(%q) error = %v, want ErrInvalidURL", in, err)
		}
	}
}

func TestSiteKey(t *testing.T) {
	tests := []struct {
		a, b  string
		equal bool
	}{
		{"example.com", "www.example.com/", true},
		{"https://example.com/", "example.com", true},
		{"https://Example.com/en/", "example.com/en", true},
		{"example.com/en/", "example.com/de/", false},
		{"http://example.com", "https://example.com", false},
		{"example.com", "example.org", false},
	}

	for _, tt := range tests {
		got := SiteKey(tt.a) == SiteKey(tt.b)
		if got != tt.equal {
			t.Errorf("SiteKey(%q)==SiteKey(%q) = %v, want %v (%q vs %q)",
				tt.a, tt.b, got, tt.equal, SiteKey(tt.a), SiteKey(tt.b))
		}
	}
}

func TestAddHTTPS(t *testing.T) {
	tests := map[string]string{
		"":                    "",
		"example.com":         "https://example.com",
		"http://example.com":  "http://example.com",
		"https://example.com": "https://example.com",
		" tum.de/en/ ":        "https://tum.de/en/",
	}
	for in, want := range tests {
		if got := AddHTTPS(in); got != want {
			t.Errorf("AddHTTPS(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFaviconURL(t *testing.T) {
	if got := FaviconURL("https://www.tum.de/en/"); got != "https://www.google.com/s2/favicons?domain=www.tum.de&sz=32" {
		t.Errorf("FaviconURL() = %q", got)
	}
	if got := FaviconURL(""); got != "" {
		t.Errorf("FaviconURL(\"\") = %q, want empty", got)
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3*time.Hour + 10*time.Minute, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := FormatAge(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("FormatAge(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}
