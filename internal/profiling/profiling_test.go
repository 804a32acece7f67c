package profiling

import (
	"strings"
	"testing"
	"time"
)

func TestTrackAccumulates(t *testing.T) {
	p := New()
	for i := 0; i < 3; i++ {
		stop := p.Track("slow")
		time.Sleep(2 * time.Millisecond)
		stop()
	}
	p.Track("fast")()

	snap := p.Snapshot()
	if len(snap) != 2 || snap[0].Name != "slow" || snap[0].Calls != 3 {
		t.Fatalf("snapshot %+v", snap)
	}
	if snap[0].Total < 6*time.Millisecond {
		t.Fatalf("slow total %v", snap[0].Total)
	}

	p.ResetCycle()
	if len(p.Snapshot()) != 0 {
		t.Fatalf("cycle not reset")
	}
	if len(p.Lifetime()) != 2 || p.Cycles() != 1 {
		t.Fatalf("lifetime lost on reset")
	}

	top := p.TopN(1)
	if !strings.HasPrefix(top, "slow:") || !strings.HasSuffix(top, "ms/3") {
		t.Fatalf("TopN(1) = %q", top)
	}
	if got := p.TopN(10); strings.Count(got, ",") != 1 {
		t.Fatalf("TopN(10) = %q", got)
	}
}

func TestFormatMs(t *testing.T) {
	if got := formatMs(4200 * time.Microsecond); got != "4.2ms" {
		t.Fatalf("formatMs = %q", got)
	}
}
