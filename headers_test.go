package http1conn

import (
	"testing"
)

func TestLookupHeaderCaseInsensitive(t *testing.T) {
	for _, name := range []string{"content-length", "Content-Length", "CONTENT-LENGTH", "cOnTeNt-LeNgTh"} {
		d := lookupHeader([]byte(name))
		if d == nil {
			t.Fatalf("lookup failed for %q", name)
		}
		if string(d.name) != "Content-Length" {
			t.Fatalf("unexpected canonical name %q for %q", d.name, name)
		}
	}
	if d := lookupHeader([]byte("X-Definitely-Unknown")); d != nil {
		t.Fatalf("unexpected descriptor for unknown header: %+v", d)
	}
	if d := lookupHeader(nil); d != nil {
		t.Fatalf("unexpected descriptor for empty name")
	}
}

func TestHeaderSeparators(t *testing.T) {
	if sep := lookupHeader([]byte("Cookie")).separator(); string(sep) != "; " {
		t.Fatalf("unexpected Cookie separator %q", sep)
	}
	if sep := lookupHeader([]byte("User-Agent")).separator(); string(sep) != " " {
		t.Fatalf("unexpected User-Agent separator %q", sep)
	}
	if sep := lookupHeader([]byte("Accept")).separator(); string(sep) != ", " {
		t.Fatalf("unexpected Accept separator %q", sep)
	}
	var nilDesc *headerDesc
	if sep := nilDesc.separator(); string(sep) != ", " {
		t.Fatalf("unexpected custom-header separator %q", sep)
	}
}

func TestHeaderCategoryFlags(t *testing.T) {
	if !lookupHeader([]byte("Content-Type")).is(hdrContent) {
		t.Fatalf("Content-Type must be a content header")
	}
	if !lookupHeader([]byte("Content-Length")).is(hdrNonTrailing) {
		t.Fatalf("Content-Length must be non-trailing")
	}
	if !lookupHeader([]byte("Accept")).is(hdrRequest) {
		t.Fatalf("Accept must be request-only")
	}
	if !lookupHeader([]byte("Server")).is(hdrResponse) {
		t.Fatalf("Server must be response-only")
	}
	var nilDesc *headerDesc
	if nilDesc.is(hdrNonTrailing) {
		t.Fatalf("custom headers must not report category flags")
	}
}

func TestValidateHeaderName(t *testing.T) {
	for _, name := range []string{"X-Foo", "ETag", "x123", "!#$%&'*+-.^_`|~"} {
		if !validateHeaderName([]byte(name)) {
			t.Fatalf("valid token %q rejected", name)
		}
	}
	for _, name := range []string{"", "X Foo", "X:Foo", "X\x01", "naïve"} {
		if validateHeaderName([]byte(name)) {
			t.Fatalf("invalid token %q accepted", name)
		}
	}
}
