package bastion

import "testing"

func TestDomainKey(t *testing.T) {
	if got := NewDomain("app1", "org1").Key(); got != "app1:org1" {
		t.Fatalf("expected app1:org1, got %s", got)
	}
	if got := NewGlobalDomain("app1").Key(); got != "app1:" {
		t.Fatalf("expected app1:, got %s", got)
	}
}

func TestParseDomainKeyRoundTrip(t *testing.T) {
	for _, d := range []Domain{
		NewDomain("app1", "org1"),
		NewGlobalDomain("app1"),
	} {
		parsed, err := ParseDomainKey(d.Key())
		if err != nil {
			t.Fatal(err)
		}
		if parsed.Key() != d.Key() {
			t.Fatalf("round trip changed %s to %s", d.Key(), parsed.Key())
		}
		if parsed.Global() != d.Global() {
			t.Fatalf("round trip changed global flag for %s", d.Key())
		}
	}
}

func TestParseDomainKeyRejectsMalformed(t *testing.T) {
	for _, key := range []string{"", "app1", ":org1", "app1:org1:extra"} {
		if _, err := ParseDomainKey(key); err == nil {
			t.Fatalf("expected error for %q", key)
		}
	}
}

func TestDomainValidate(t *testing.T) {
	if err := NewDomain("app1", "org1").Validate(); err != nil {
		t.Fatal(err)
	}
	if err := (Domain{}).Validate(); err == nil {
		t.Fatal("expected error for empty app id")
	}
	if err := NewDomain("app:1", "org1").Validate(); err == nil {
		t.Fatal("expected error for colon in app id")
	}
	if err := NewDomain("app1", "org:1").Validate(); err == nil {
		t.Fatal("expected error for colon in tenant id")
	}
}

func TestMatchPattern(t *testing.T) {
	cases := []struct {
		pattern, value string
		want           bool
	}{
		{"posts", "posts", true},
		{"posts", "comments", false},
		{"*", "anything", true},
		{"posts/*", "posts/123", true},
		{"posts/*", "comments/123", false},
	}
	for _, tc := range cases {
		if got := matchPattern(tc.pattern, tc.value); got != tc.want {
			t.Fatalf("matchPattern(%q, %q) = %v, want %v", tc.pattern, tc.value, got, tc.want)
		}
	}
}
