package palloc

import "testing"

func TestAverageInt64(t *testing.T) {
	av := &averageInt64{}
	if x := av.mean(); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	} else if y := av.sd(); y != 0 {
		t.Errorf("expected %v, got %v", 0, y)
	}
	for i := int64(1); i <= 100; i++ {
		av.add(i)
	}
	if x := av.samples(); x != 100 {
		t.Errorf("expected %v, got %v", 100, x)
	} else if x := av.min(); x != 1 {
		t.Errorf("expected %v, got %v", 1, x)
	} else if x := av.max(); x != 100 {
		t.Errorf("expected %v, got %v", 100, x)
	} else if x := av.mean(); x != 50 {
		t.Errorf("expected %v, got %v", 50, x)
	}
	stats := av.stats()
	if x := stats["samples"].(int64); x != 100 {
		t.Errorf("expected %v, got %v", 100, x)
	}
}
