package ports

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
)

// fakeSource is a scripted ListenerSource.
type fakeSource struct {
	name      string
	available bool
	table     map[int]bool
	err       error
}

func (f fakeSource) Name() string    { return f.name }
func (f fakeSource) Available() bool { return f.available }
func (f fakeSource) Listening() (map[int]bool, error) {
	return f.table, f.err
}

func TestResolveNoConflicts(t *testing.T) {
	r := NewResolverWithSources(zap.NewNop(),
		fakeSource{name: "fake", available: true, table: map[int]bool{22: true, 443: true}})

	got := r.Resolve(map[string]int{"http": 3000, "notebook": 8888})
	for _, a := range got {
		if a.Resolved != a.Desired {
			t.Errorf("port %s remapped to %d without a conflict", a.Name, a.Resolved)
		}
	}
	if got.Remapped() {
		t.Error("Remapped() = true for conflict-free input")
	}
}

func TestResolveConflictRemapsByOffset(t *testing.T) {
	r := NewResolverWithSources(zap.NewNop(),
		fakeSource{name: "fake", available: true, table: map[int]bool{3000: true}})

	got := r.Resolve(map[string]int{"http": 3000, "notebook": 8888})
	if p := got.Get("http"); p != 4000 {
		t.Errorf("http resolved to %d, want 4000", p)
	}
	if p := got.Get("notebook"); p != 8888 {
		t.Errorf("notebook resolved to %d, want 8888 unchanged", p)
	}
	if !got.Remapped() {
		t.Error("Remapped() = false after a remap")
	}
}

func TestResolveNoRecursiveRecheck(t *testing.T) {
	// 4000 is also occupied; the single-hop policy still lands there.
	r := NewResolverWithSources(zap.NewNop(),
		fakeSource{name: "fake", available: true, table: map[int]bool{3000: true, 4000: true}})

	got := r.Resolve(map[string]int{"http": 3000})
	if p := got.Get("http"); p != 4000 {
		t.Errorf("http resolved to %d, want 4000 (no recursive re-check)", p)
	}
}

func TestResolveNoIntrospectionToolIsSoftFailure(t *testing.T) {
	r := NewResolverWithSources(zap.NewNop(),
		fakeSource{name: "ss", available: false},
		fakeSource{name: "lsof", available: false})

	got := r.Resolve(map[string]int{"http": 3000})
	if p := got.Get("http"); p != 3000 {
		t.Errorf("http resolved to %d, want 3000 passthrough", p)
	}
}

func TestResolveFallsThroughFailingSource(t *testing.T) {
	r := NewResolverWithSources(zap.NewNop(),
		fakeSource{name: "ss", available: true, err: fmt.Errorf("boom")},
		fakeSource{name: "lsof", available: true, table: map[int]bool{8888: true}})

	got := r.Resolve(map[string]int{"notebook": 8888})
	if p := got.Get("notebook"); p != 9888 {
		t.Errorf("notebook resolved to %d, want 9888 via second source", p)
	}
}

func TestResolveStableOrder(t *testing.T) {
	r := NewResolverWithSources(zap.NewNop(),
		fakeSource{name: "fake", available: true, table: map[int]bool{}})

	desired := map[string]int{"notebook": 8888, "http": 3000, "debug": 5678, "code": 8443}
	first := r.Resolve(desired)
	for i := 0; i < 5; i++ {
		again := r.Resolve(desired)
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("unstable order at %d: %v vs %v", j, first[j], again[j])
			}
		}
	}
}

func TestParseSS(t *testing.T) {
	out := "LISTEN 0      4096         0.0.0.0:3000       0.0.0.0:*\n" +
		"LISTEN 0      511             [::]:8888          [::]:*\n" +
		"LISTEN 0      128        127.0.0.1:631        0.0.0.0:*\n"
	table := parseSS(out)
	for _, want := range []int{3000, 8888, 631} {
		if !table[want] {
			t.Errorf("parseSS missing port %d", want)
		}
	}
	if len(table) != 3 {
		t.Errorf("parseSS found %d ports, want 3", len(table))
	}
}

func TestParseLsof(t *testing.T) {
	out := "COMMAND   PID USER   FD   TYPE DEVICE SIZE/OFF NODE NAME\n" +
		"node    41725  dev   23u  IPv4 0x1234      0t0  TCP *:3000 (LISTEN)\n" +
		"python  41800  dev    5u  IPv6 0x5678      0t0  TCP [::1]:8888 (LISTEN)\n" +
		"chrome  41900  dev   88u  IPv4 0x9abc      0t0  TCP 192.168.1.5:52012->142.250.1.1:443 (ESTABLISHED)\n"
	table := parseLsof(out)
	if !table[3000] || !table[8888] {
		t.Errorf("parseLsof = %v, want 3000 and 8888", table)
	}
	if table[443] || table[52012] {
		t.Errorf("parseLsof picked up non-LISTEN ports: %v", table)
	}
}
