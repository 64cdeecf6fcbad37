package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindClassification(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name         string
		err          error
		wantFatal    bool
		wantDegraded bool
	}{
		{"fatal", Fatal("load", base), true, false},
		{"fatalf", Fatalf("load", "wrong count: %d", 2), true, false},
		{"degraded", Degrade("resolution", base), false, true},
		{"wrapped fatal", fmt.Errorf("event 12: %w", Fatal("jets", base)), true, false},
		{"plain", base, false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.wantFatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.wantFatal)
			}
			if got := IsDegraded(tt.err); got != tt.wantDegraded {
				t.Errorf("IsDegraded() = %v, want %v", got, tt.wantDegraded)
			}
		})
	}
}

func TestNilPassthrough(t *testing.T) {
	assert.NoError(t, Fatal("op", nil))
	assert.NoError(t, Degrade("op", nil))
}

func TestErrorMessage(t *testing.T) {
	err := Fatal("jec", errors.New("expected 4 files, got 3"))
	assert.Equal(t, "fatal-config: jec: expected 4 files, got 3", err.Error())
	assert.True(t, errors.Is(err, errors.Unwrap(err)))

	var fe *Error
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, FatalConfig, fe.Kind)
	assert.Equal(t, "kind(9)", Kind(9).String())
}
