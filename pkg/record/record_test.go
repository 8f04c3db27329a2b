package record

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Update{
		{SrcKey: 0, DstVal: 0},
		{SrcKey: 1, DstVal: 9},
		{SrcKey: 1023, DstVal: 1<<64 - 1},
	}

	buf := make([]byte, Size)
	for _, u := range cases {
		Encode(buf, u)
		got := Decode(buf)
		if got != u {
			t.Errorf("Decode(Encode(%+v)) = %+v", u, got)
		}
		if KeyAt(buf) != u.SrcKey {
			t.Errorf("KeyAt = %d, want %d", KeyAt(buf), u.SrcKey)
		}
	}
}

func TestIsZero(t *testing.T) {
	if !(Update{}).IsZero() {
		t.Error("zero-value Update should report IsZero")
	}
	if (Update{SrcKey: 1}).IsZero() {
		t.Error("non-zero SrcKey should not report IsZero")
	}
	if (Update{DstVal: 1}).IsZero() {
		t.Error("non-zero DstVal should not report IsZero")
	}
}

func TestCount(t *testing.T) {
	if Count(Size*3) != 3 {
		t.Errorf("Count(3*Size) = %d, want 3", Count(Size*3))
	}
	if Count(Size*3+1) != 3 {
		t.Errorf("Count should floor-divide, got %d", Count(Size*3+1))
	}
}

func BenchmarkEncodeDecode(b *testing.B) {
	buf := make([]byte, Size)
	u := Update{SrcKey: 42, DstVal: 99}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Encode(buf, u)
		_ = Decode(buf)
	}
}
