package jer

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
)

func TestSetLogWriters_Streams(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)
	defer SetLogWriters(nil, nil, nil)

	opsf("ops %d", 1)
	diagf("diag %d", 2)
	tracef("trace %d", 3)

	for name, tt := range map[string]struct {
		buf  *bytes.Buffer
		want string
	}{
		"ops":   {&ops, "ops 1"},
		"diag":  {&diag, "diag 2"},
		"trace": {&trace, "trace 3"},
	} {
		out := tt.buf.String()
		if !strings.Contains(out, tt.want) || !strings.Contains(out, "[jer]") {
			t.Errorf("%s stream = %q, want %q with [jer] prefix", name, out, tt.want)
		}
	}

	SetLogWriters(nil, nil, nil)
	ops.Reset()
	opsf("dropped")
	if ops.Len() != 0 {
		t.Errorf("disabled ops stream wrote %q", ops.String())
	}
}

func TestSetLogWriters_ConcurrentSwap(t *testing.T) {
	defer SetLogWriters(nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				opsf("worker %d line %d", i, j)
				tracef("worker %d line %d", i, j)
			}
		}(i)
	}
	for j := 0; j < 50; j++ {
		SetLogWriters(io.Discard, nil, io.Discard)
		SetLogWriters(nil, nil, nil)
	}
	wg.Wait()
}
