package crypto

import (
	"bytes"
	"errors"
	"testing"
)

// RFC 5869 appendix A, SHA-256 cases 1 and 3.
var hkdfVectors = []struct {
	name   string
	ikm    string
	salt   string
	info   string
	length int
	prk    string
	okm    string
}{
	{
		name:   "case1",
		ikm:    "0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b",
		salt:   "000102030405060708090a0b0c",
		info:   "f0f1f2f3f4f5f6f7f8f9",
		length: 42,
		prk:    "077709362c2e32df0ddc3f0dc47bba6390b6c73bb50f9c3122ec844ad7c2b3e5",
		okm:    "3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865",
	},
	{
		name:   "case3",
		ikm:    "0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b",
		length: 42,
		prk:    "19ef24a32c717b167f33a91d6f648bdf96596776afdb6377ac434c1c293ccb04",
		okm:    "8da4e775a563c18f715f802a063c5a31b8a11f5c5ee1879ec3454e5f3c738d2d9d201395faa4b61a96c8",
	},
}

func TestHKDF(t *testing.T) {
	for _, tc := range hkdfVectors {
		t.Run(tc.name, func(t *testing.T) {
			ikm, salt, info := mustHex(t, tc.ikm), mustHex(t, tc.salt), mustHex(t, tc.info)

			okm, err := HKDFSHA256(ikm, salt, info, tc.length)
			if err != nil {
				t.Fatalf("HKDFSHA256() error: %v", err)
			}
			if !bytes.Equal(okm, mustHex(t, tc.okm)) {
				t.Errorf("HKDFSHA256() = %x, want %s", okm, tc.okm)
			}

			prk := HKDFExtractSHA256(ikm, salt)
			if !bytes.Equal(prk, mustHex(t, tc.prk)) {
				t.Errorf("HKDFExtractSHA256() = %x, want %s", prk, tc.prk)
			}

			expanded, err := HKDFExpandSHA256(prk, info, tc.length)
			if err != nil {
				t.Fatalf("HKDFExpandSHA256() error: %v", err)
			}
			if !bytes.Equal(expanded, okm) {
				t.Errorf("HKDFExpandSHA256() = %x, want %x", expanded, okm)
			}
		})
	}
}

func TestDeriveKeys(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, KeySize)
	a, err := DeriveKeys(key)
	if err != nil {
		t.Fatalf("DeriveKeys() error: %v", err)
	}
	b, _ := DeriveKeys(key)
	if !bytes.Equal(a.CCM, b.CCM) || !bytes.Equal(a.Personalization, b.Personalization) {
		t.Error("DeriveKeys() is not deterministic")
	}
	if len(a.CCM) != KeySize || len(a.Personalization) != PersonalizationSize {
		t.Errorf("sizes = %d/%d, want %d/%d", len(a.CCM), len(a.Personalization), KeySize, PersonalizationSize)
	}
	if bytes.Equal(a.CCM, key) {
		t.Error("CCM key equals network key")
	}

	other, _ := DeriveKeys(bytes.Repeat([]byte{0x12}, KeySize))
	if bytes.Equal(a.CCM, other.CCM) {
		t.Error("different network keys derived the same CCM key")
	}

	if _, err := DeriveKeys([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("DeriveKeys(short) error = %v, want ErrInvalidKeySize", err)
	}
}

func TestS0Nonce(t *testing.T) {
	pers := bytes.Repeat([]byte{0x01}, PersonalizationSize)
	sender := bytes.Repeat([]byte{0xAA}, S0NonceSize)
	receiver := bytes.Repeat([]byte{0xBB}, S0NonceSize)

	n1, err := S0Nonce(pers, sender, receiver)
	if err != nil {
		t.Fatalf("S0Nonce() error: %v", err)
	}
	if len(n1) != NonceSize {
		t.Errorf("len(S0Nonce()) = %d, want %d", len(n1), NonceSize)
	}
	n2, _ := S0Nonce(pers, receiver, sender)
	if bytes.Equal(n1, n2) {
		t.Error("swapping sender and receiver nonce gave the same nonce")
	}
	if _, err := S0Nonce(pers, sender[:7], receiver); !errors.Is(err, ErrInvalidNonceMaterial) {
		t.Errorf("S0Nonce(short) error = %v, want ErrInvalidNonceMaterial", err)
	}
}

func TestSpanNonce(t *testing.T) {
	pers := bytes.Repeat([]byte{0x01}, PersonalizationSize)
	sei := bytes.Repeat([]byte{0x0A}, EntropySize)
	rei := bytes.Repeat([]byte{0x0B}, EntropySize)

	base, err := SpanNonce(pers, sei, rei, 1, 7)
	if err != nil {
		t.Fatalf("SpanNonce() error: %v", err)
	}
	nextSeq, _ := SpanNonce(pers, sei, rei, 1, 8)
	otherSource, _ := SpanNonce(pers, sei, rei, 2, 7)
	if bytes.Equal(base, nextSeq) {
		t.Error("sequence does not change the nonce")
	}
	if bytes.Equal(base, otherSource) {
		t.Error("source does not change the nonce")
	}
	again, _ := SpanNonce(pers, sei, rei, 1, 7)
	if !bytes.Equal(base, again) {
		t.Error("SpanNonce() is not deterministic")
	}
}
