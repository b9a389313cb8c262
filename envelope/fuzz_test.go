package envelope

import "testing"

// FuzzEnvelopeRoundTrip feeds arbitrary byte slices to Decode, looking for
// panics or silently-accepted malformed input (a length field pointing
// past the buffer, trailing garbage, etc.) rather than a clean error.
func FuzzEnvelopeRoundTrip(f *testing.F) {
	seed := sampleEnvelope()
	f.Add(seed.Encode())
	f.Add([]byte{})
	f.Add([]byte{0x00})
	f.Add(make([]byte, 71))
	f.Add(make([]byte, 72))

	f.Fuzz(func(t *testing.T, buf []byte) {
		e, err := Decode(buf)
		if err != nil {
			return
		}
		// Decode accepted the input: re-encoding it must reproduce
		// exactly the same bytes Decode consumed (no field aliasing
		// past the buffer, no silently dropped data).
		if got := e.Encode(); !bytesEqual(got, buf) {
			t.Fatalf("re-encode mismatch: got %x want %x", got, buf)
		}
	})
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
