package ws

import "testing"

func TestAcceptValueMatchesRFC6455Example(t *testing.T) {
	// The example key/accept pair from RFC 6455 §1.3.
	const key = "dGhlIHNhbXBsZSBub25jZQ=="
	const want = "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="

	if got := acceptValue(key); got != want {
		t.Fatalf("acceptValue(%q) = %q, want %q", key, got, want)
	}
}

func TestNewClientKeyIsUniqueAndWellFormed(t *testing.T) {
	a, err := newClientKey()
	if err != nil {
		t.Fatal(err)
	}
	b, err := newClientKey()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("expected distinct keys across calls")
	}
}

func TestNegotiateProtocolPicksSupportedOffer(t *testing.T) {
	got := negotiateProtocol("chat, superchat", []string{"superchat"})
	if got != "superchat" {
		t.Fatalf("got %q", got)
	}
	if negotiateProtocol("", []string{"chat"}) != "" {
		t.Fatal("expected empty when nothing offered")
	}
}

func TestExtractExtensionFindsToken(t *testing.T) {
	params, ok := extractExtension("permessage-deflate; client_max_window_bits=10, x-custom", "permessage-deflate")
	if !ok {
		t.Fatal("expected to find permessage-deflate")
	}
	if params == "" {
		t.Fatal("expected non-empty params")
	}
	if _, ok := extractExtension("x-custom", "permessage-deflate"); ok {
		t.Fatal("expected not found")
	}
}
