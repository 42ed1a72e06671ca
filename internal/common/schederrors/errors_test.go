package schederrors

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestExitCodeFromError(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
	}{
		"ErrInvalidArgument":                 {&ErrInvalidArgument{}, ExitCodeInvalidArgument},
		"ErrInvariantViolation":              {&ErrInvariantViolation{}, ExitCodeInvariantViolation},
		"ErrAreaOverflow":                    {&ErrAreaOverflow{}, ExitCodeAreaOverflow},
		"ErrAlreadyScheduled":                {&ErrAlreadyScheduled{}, ExitCodeUnknown},
		"pkg.Error => ErrInvalidArgument":    {errors.WithMessage(&ErrInvalidArgument{}, "foo"), ExitCodeInvalidArgument},
		"pkg.Error => ErrInvariantViolation": {InvariantViolationf("foo", "bar %d", 1), ExitCodeInvariantViolation},
		"multierror => ErrInvalidArgument":   {multierror.Append(nil, &ErrInvalidArgument{Name: "width"}), ExitCodeInvalidArgument},
		"pkg.Error":                          {errors.New("foo"), ExitCodeUnknown},
		"nil":                                {nil, ExitCodeOK},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCodeFromError(tc.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(
		t,
		`value 1 is invalid for field "machines"; at least 2 machines are required`,
		(&ErrInvalidArgument{Name: "machines", Value: 1, Message: "at least 2 machines are required"}).Error(),
	)
	assert.Equal(t, `value 0 is invalid for field "width"`, (&ErrInvalidArgument{Name: "width", Value: 0}).Error())
	assert.Equal(t, "invariant violated in foo: bar 1", errors.Cause(InvariantViolationf("foo", "bar %d", 1)).Error())
}
