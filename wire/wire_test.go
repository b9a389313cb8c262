package wire

import "testing"

func TestPutAndReadRoundTrip(t *testing.T) {
	var buf []byte
	buf = PutUint32(buf, 0xdeadbeef)
	buf = PutUint64(buf, 0x0102030405060708)
	buf = PutBytes(buf, []byte("hello"))
	buf = PutFixed(buf, []byte{1, 2, 3, 4})

	r := NewReader(buf)
	if v := r.Uint32(); v != 0xdeadbeef {
		t.Fatalf("Uint32 = %x", v)
	}
	if v := r.Uint64(); v != 0x0102030405060708 {
		t.Fatalf("Uint64 = %x", v)
	}
	if s := string(r.Bytes()); s != "hello" {
		t.Fatalf("Bytes = %q", s)
	}
	if fx := r.Fixed(4); string(fx) != string([]byte{1, 2, 3, 4}) {
		t.Fatalf("Fixed = %v", fx)
	}
	if r.Err() != nil {
		t.Fatalf("unexpected error: %v", r.Err())
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected no remaining bytes, got %d", r.Remaining())
	}
}

func TestUint16RoundTrip(t *testing.T) {
	buf := PutUint16(nil, 0xBEEF)
	r := NewReader(buf)
	if v := r.Uint16(); v != 0xBEEF {
		t.Fatalf("Uint16 = %x", v)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected no remaining bytes, got %d", r.Remaining())
	}
}

func TestReaderTruncation(t *testing.T) {
	r := NewReader([]byte{0x00, 0x01})
	r.Uint32()
	if r.Err() != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", r.Err())
	}
}

func TestLengthPrefixExceedsBuffer(t *testing.T) {
	buf := PutUint32(nil, 100)
	r := NewReader(buf)
	if b := r.Bytes(); b != nil {
		t.Fatalf("expected nil, got %v", b)
	}
	if r.Err() != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", r.Err())
	}
}
