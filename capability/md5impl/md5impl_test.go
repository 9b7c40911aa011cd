package md5impl

import "testing"

func TestHashPassword(t *testing.T) {
	h := Hasher{}
	got, err := h.HashPassword([]byte("postgres"), []byte("secret"), [4]byte{0x01, 0x02, 0x03, 0x04})
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if len(got) != 35 || string(got[:3]) != "md5" {
		t.Fatalf("got %q, want md5-prefixed 35-byte hash", got)
	}

	// Same inputs must be deterministic.
	again, err := h.HashPassword([]byte("postgres"), []byte("secret"), [4]byte{0x01, 0x02, 0x03, 0x04})
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if string(got) != string(again) {
		t.Errorf("hash not deterministic: %q != %q", got, again)
	}

	// Different salt must change the output.
	other, err := h.HashPassword([]byte("postgres"), []byte("secret"), [4]byte{0x05, 0x06, 0x07, 0x08})
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if string(got) == string(other) {
		t.Error("hash did not change with a different salt")
	}
}
