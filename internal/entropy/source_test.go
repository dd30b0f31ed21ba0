package entropy

import "testing"

func TestSeededDeterminism(t *testing.T) {
	a := NewSeeded(7)
	b := NewSeeded(7)
	for i := 0; i < 100; i++ {
		va, vb := a.Float(), b.Float()
		if va != vb {
			t.Fatalf("draw %d diverged: %v vs %v", i, va, vb)
		}
		if va < 0 || va >= 1 {
			t.Fatalf("draw %d out of range: %v", i, va)
		}
	}
}

func TestUniformRange(t *testing.T) {
	src := NewSeeded(1)
	for i := 0; i < 1000; i++ {
		v := Uniform(src, 0.8, 1.2)
		if v < 0.8 || v >= 1.2 {
			t.Fatalf("uniform draw out of [0.8,1.2): %v", v)
		}
	}
}

func TestPickBounds(t *testing.T) {
	src := NewSeeded(2)
	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		idx := Pick(src, 5)
		if idx < 0 || idx >= 5 {
			t.Fatalf("pick out of range: %d", idx)
		}
		seen[idx] = true
	}
	for i := 0; i < 5; i++ {
		if !seen[i] {
			t.Errorf("index %d never picked in 1000 draws", i)
		}
	}
}

func TestPickPanicsOnEmpty(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for n=0")
		}
	}()
	Pick(NewSeeded(3), 0)
}

func TestCryptoFloatRange(t *testing.T) {
	var src Crypto
	for i := 0; i < 100; i++ {
		v := src.Float()
		if v < 0 || v >= 1 {
			t.Fatalf("crypto draw out of range: %v", v)
		}
	}
}
