package metrics

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStore_RecordAndSummary(t *testing.T) {
	s := NewStore(10)

	s.Record(CallRecord{Provider: "SDAPI_V1", Operation: OpTxt2Img, Status: StatusSuccess, Duration: 2 * time.Second, Images: 2})
	s.Record(CallRecord{Provider: "SDAPI_V1", Operation: OpTxt2Img, Status: StatusError, Duration: 4 * time.Second})
	s.Record(CallRecord{Provider: "DALL_E", Operation: OpImg2Img, Status: StatusTimeout, Duration: time.Second})

	m := s.Summary()
	if m.TotalCalls != 3 || m.TotalSuccess != 1 || m.TotalErrors != 2 {
		t.Fatalf("totals = %d/%d/%d, want 3/1/2", m.TotalCalls, m.TotalSuccess, m.TotalErrors)
	}

	txt := m.ByOperation["SDAPI_V1/txt2img"]
	if txt == nil {
		t.Fatal("missing SDAPI_V1/txt2img summary")
	}
	if txt.Count != 2 {
		t.Errorf("Count = %d, want 2", txt.Count)
	}
	if txt.SuccessRate != 50 {
		t.Errorf("SuccessRate = %v, want 50", txt.SuccessRate)
	}
	if txt.AvgDuration != 3*time.Second {
		t.Errorf("AvgDuration = %v, want 3s", txt.AvgDuration)
	}
	if txt.Images != 2 {
		t.Errorf("Images = %d, want 2", txt.Images)
	}

	if img := m.ByOperation["DALL_E/img2img"]; img == nil || img.SuccessRate != 0 {
		t.Errorf("DALL_E/img2img = %+v", img)
	}
}

func TestStore_RecentWrapsAround(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Record(CallRecord{ID: fmt.Sprint(i), Status: StatusSuccess})
	}

	got := s.Recent(10)
	if len(got) != 3 {
		t.Fatalf("len(Recent) = %d, want 3", len(got))
	}
	for i, want := range []string{"2", "3", "4"} {
		if got[i].ID != want {
			t.Errorf("Recent[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}

	last := s.Recent(1)
	if len(last) != 1 || last[0].ID != "4" {
		t.Errorf("Recent(1) = %+v", last)
	}
}

func TestStore_RecentEmpty(t *testing.T) {
	s := NewStore(0)
	if got := s.Recent(5); got == nil || len(got) != 0 {
		t.Errorf("Recent on empty store = %#v, want empty slice", got)
	}
	s.Record(CallRecord{ID: "a"})
	if got := s.Recent(0); len(got) != 0 {
		t.Errorf("Recent(0) = %#v", got)
	}
	if s.cap != DefaultHistoryCapacity {
		t.Errorf("cap = %d, want %d", s.cap, DefaultHistoryCapacity)
	}
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore(50)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				s.Record(CallRecord{Provider: "p", Operation: OpUpscale, Status: StatusSuccess})
				_ = s.Recent(5)
				_ = s.Summary()
			}
		}()
	}
	wg.Wait()

	if got := s.Summary().TotalCalls; got != 200 {
		t.Errorf("TotalCalls = %d, want 200", got)
	}
}
