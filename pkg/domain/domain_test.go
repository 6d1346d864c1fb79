package domain

import "testing"

func TestValidAddress(t *testing.T) {
	cases := []struct {
		addr Address
		ok   bool
	}{
		{"0x00000000000000000000000000000000000000c1", true},
		{"0xAbCdEf0123456789aBcDeF0123456789abcdef01", true},
		{ZeroAddress, true},
		{"", false},
		{"0x00000000000000000000000000000000000000c", false},
		{"0x00000000000000000000000000000000000000c11", false},
		{"00000000000000000000000000000000000000c1ab", false},
		{"0x00000000000000000000000000000000000000zz", false},
	}
	for _, c := range cases {
		if got := ValidAddress(c.addr); got != c.ok {
			t.Fatalf("ValidAddress(%q) = %v, want %v", c.addr, got, c.ok)
		}
	}
}

func TestIsZero(t *testing.T) {
	if !ZeroAddress.IsZero() {
		t.Fatal("zero address should report zero")
	}
	if Address("0x00000000000000000000000000000000000000c1").IsZero() {
		t.Fatal("non-zero address should not report zero")
	}
}

func TestMemorySinkRecordsInOrder(t *testing.T) {
	m := &MemorySink{}
	m.Record(NewEvent(EvBatchMinted, BatchMinted{BatchID: 1}))
	m.Record(NewEvent(EvTokensPurchased, TokensPurchased{BatchID: 1}))
	if len(m.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(m.Events))
	}
	if m.Events[0].Type != EvBatchMinted || m.Events[1].Type != EvTokensPurchased {
		t.Fatalf("unexpected order: %s, %s", m.Events[0].Type, m.Events[1].Type)
	}
	if m.Events[0].ID == m.Events[1].ID {
		t.Fatal("event ids should be unique")
	}
}
