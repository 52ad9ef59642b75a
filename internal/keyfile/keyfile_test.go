package keyfile

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	entries := []KeyEntry{
		{Address: "Txxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx", KeyHex: "aabbcc"},
		{Address: "0x0000000000000000000000000000000000dEaD", KeyHex: "ddeeff"},
	}
	env, err := Encrypt(entries, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	got, err := Decrypt(env, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i] != entries[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], entries[i])
		}
	}
}

func TestDecryptWrongPassphraseFails(t *testing.T) {
	env, err := Encrypt([]KeyEntry{{Address: "a", KeyHex: "b"}}, "right")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(env, "wrong"); err == nil {
		t.Error("expected decryption to fail with wrong passphrase")
	}
}

func TestDecryptRejectsMalformedEnvelope(t *testing.T) {
	if _, err := Decrypt(&Envelope{}, "anything"); err == nil {
		t.Error("expected error on malformed envelope")
	}
}
