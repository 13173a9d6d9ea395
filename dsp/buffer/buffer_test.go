package buffer

import "testing"

func TestResizeReusesCapacity(t *testing.T) {
	b := New(256)
	if b.Len() != 256 || b.Allocations() != 1 {
		t.Fatalf("len=%d allocs=%d", b.Len(), b.Allocations())
	}

	b.Samples()[10] = 3
	if b.Resize(128) {
		t.Fatal("shrinking allocated")
	}
	if b.Resize(256) {
		t.Fatal("regrowing within capacity allocated")
	}
	if b.Samples()[10] != 3 {
		t.Fatal("kept prefix lost")
	}
	for _, v := range b.Samples()[128:] {
		if v != 0 {
			t.Fatal("regrown region not zeroed")
		}
	}

	if !b.Resize(512) || b.Allocations() != 2 {
		t.Fatalf("growth should allocate, allocs=%d", b.Allocations())
	}
	if b.Samples()[10] != 3 {
		t.Fatal("data lost on growth")
	}
}

func TestCopyFrom32(t *testing.T) {
	b := New(0)
	b.CopyFrom32([]float32{1, 0.5, -2})
	if b.Len() != 3 || b.Samples()[1] != 0.5 || b.Samples()[2] != -2 {
		t.Fatalf("got %v", b.Samples())
	}
}

func TestPool(t *testing.T) {
	p := NewPool(64)
	if p.Length() != 64 {
		t.Fatalf("length = %d", p.Length())
	}
	b := p.Get()
	if b.Len() != 64 {
		t.Fatalf("len = %d", b.Len())
	}
	b.Samples()[0] = 1
	p.Put(b)
	p.Put(nil)

	c := p.Get()
	if c.Len() != 64 {
		t.Fatalf("len = %d", c.Len())
	}
	for _, v := range c.Samples() {
		if v != 0 {
			t.Fatal("pooled buffer not zeroed")
		}
	}
	if gets, allocs := p.Stats(); gets != 2 || allocs < 1 || allocs > 2 {
		t.Fatalf("stats = %d gets, %d allocs", gets, allocs)
	}
}

func TestPoolDropsResizedBuffers(t *testing.T) {
	p := NewPool(16)
	b := p.Get()
	b.Resize(32)
	p.Put(b)

	for i := 0; i < 4; i++ {
		c := p.Get()
		if c.Len() != 16 {
			t.Fatalf("pool served a %d-sample buffer", c.Len())
		}
		if c == b {
			t.Fatal("resized buffer was recycled")
		}
	}
	if empty := NewPool(-3); empty.Length() != 0 || empty.Get().Len() != 0 {
		t.Fatal("negative length not clamped")
	}
}
