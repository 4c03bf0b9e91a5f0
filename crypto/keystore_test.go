package crypto

import "testing"

func TestSealOpenKeyPairRoundTrip(t *testing.T) {
	kp, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	password := []byte("correct horse battery staple")

	ks, err := SealKeyPair(kp, password)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	got, err := OpenKeyPair(ks, password)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(got.Private) != string(kp.Private) {
		t.Fatalf("recovered private key mismatch")
	}
}

func TestOpenKeyPairWrongPassword(t *testing.T) {
	kp, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	ks, err := SealKeyPair(kp, []byte("right password"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := OpenKeyPair(ks, []byte("wrong password")); err == nil {
		t.Fatalf("expected error opening with wrong password")
	}
}

func TestKeystoreMarshalRoundTrip(t *testing.T) {
	kp, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	ks, err := SealKeyPair(kp, []byte("pw"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	b, err := ks.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := UnmarshalKeystore(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, err := OpenKeyPair(parsed, []byte("pw"))
	if err != nil {
		t.Fatalf("open after round trip: %v", err)
	}
	if string(got.Private) != string(kp.Private) {
		t.Fatalf("recovered private key mismatch after marshal round trip")
	}
}
