// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type recorder struct {
	calls []string
}

func (r *recorder) step(name string, fail error, rollbackErr error) Step {
	return Step{
		Name:  name,
		Phase: PhasePreCapture,
		Execute: func(ctx context.Context, cc *Context) error {
			r.calls = append(r.calls, "exec:"+name)
			return fail
		},
		Rollback: func(ctx context.Context, cc *Context) error {
			r.calls = append(r.calls, "rollback:"+name)
			return rollbackErr
		},
	}
}

func TestRunReversible_UnwindsInReverseOrder(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for k := 0; k < n; k++ {
			t.Run(fmt.Sprintf("n=%d/k=%d", n, k), func(t *testing.T) {
				rec := &recorder{}
				cause := errors.New("boom")
				steps := make([]Step, n)
				for i := 0; i < n; i++ {
					var fail error
					if i == k {
						fail = cause
					}
					steps[i] = rec.step(fmt.Sprintf("s%d", i), fail, nil)
				}

				err := NewExecutor(nil).RunReversible(context.Background(), steps, NewContext(Input{}))
				require.Error(t, err)
				assert.Same(t, cause, err)

				var want []string
				for i := 0; i <= k; i++ {
					want = append(want, fmt.Sprintf("exec:s%d", i))
				}
				for i := k - 1; i >= 0; i-- {
					want = append(want, fmt.Sprintf("rollback:s%d", i))
				}
				assert.Equal(t, want, rec.calls)
			})
		}
	}
}

func TestRunReversible_RollbackFailureDoesNotMaskCause(t *testing.T) {
	rec := &recorder{}
	cause := errors.New("charge declined")
	steps := []Step{
		rec.step("a", nil, nil),
		rec.step("b", nil, errors.New("rollback b failed")),
		rec.step("c", cause, nil),
	}

	err := NewExecutor(nil).RunReversible(context.Background(), steps, NewContext(Input{}))
	assert.Same(t, cause, err)
	assert.Equal(t, []string{"exec:a", "exec:b", "exec:c", "rollback:b", "rollback:a"}, rec.calls)
}

func TestRunReversible_SkipsPlainSteps(t *testing.T) {
	rec := &recorder{}
	plain := Step{Name: "plain", Phase: PhasePreCapture, Execute: func(ctx context.Context, cc *Context) error {
		rec.calls = append(rec.calls, "exec:plain")
		return nil
	}}
	steps := []Step{rec.step("a", nil, nil), plain, rec.step("b", errors.New("x"), nil)}

	require.Error(t, NewExecutor(nil).RunReversible(context.Background(), steps, NewContext(Input{})))
	assert.Equal(t, []string{"exec:a", "exec:plain", "exec:b", "rollback:a"}, rec.calls)
}

func TestRunReversible_Success(t *testing.T) {
	rec := &recorder{}
	steps := []Step{rec.step("a", nil, nil), rec.step("b", nil, nil)}
	require.NoError(t, NewExecutor(nil).RunReversible(context.Background(), steps, NewContext(Input{})))
	assert.Equal(t, []string{"exec:a", "exec:b"}, rec.calls)
}

func TestRunReversible_PanicBecomesFailure(t *testing.T) {
	rec := &recorder{}
	steps := []Step{
		rec.step("a", nil, nil),
		{Name: "p", Phase: PhasePreCapture, Execute: func(ctx context.Context, cc *Context) error { panic("bad") }},
	}
	err := NewExecutor(nil).RunReversible(context.Background(), steps, NewContext(Input{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
	assert.Equal(t, []string{"exec:a", "rollback:a"}, rec.calls)
}

func TestUnwind_FinalizedIsNoop(t *testing.T) {
	rec := &recorder{}
	steps := []Step{rec.step("a", nil, nil), rec.step("b", nil, nil)}
	cc := NewContext(Input{})
	cc.MarkFinalized()

	NewExecutor(nil).Unwind(context.Background(), steps, cc, errors.New("replay"))
	assert.Empty(t, rec.calls)
}

func TestRunPhase_ClassifiesFailure(t *testing.T) {
	rec := &recorder{}
	steps := []Step{rec.step("validate", NewValidationFailure("cart is empty"), nil)}

	ce := NewExecutor(nil).RunPhase(context.Background(), PhasePreCapture, steps, NewContext(Input{}))
	require.NotNil(t, ce)
	assert.Equal(t, KindValidation, ce.Kind)
	assert.Equal(t, "validate", ce.Step)
	assert.Equal(t, []string{"cart is empty"}, ce.Messages)
	assert.True(t, IsValidationFailure(ce))
}

func TestRunPostCapture_InvokesOrderFailureHooks(t *testing.T) {
	var calls []string
	mk := func(name string, fail error) Step {
		return Step{
			Name:  name,
			Phase: PhasePostCapture,
			Execute: func(ctx context.Context, cc *Context) error {
				calls = append(calls, "exec:"+name)
				return fail
			},
			Rollback: func(ctx context.Context, cc *Context) error {
				calls = append(calls, "rollback:"+name)
				return nil
			},
			OnOrderFailure: func(ctx context.Context, cc *Context) error {
				calls = append(calls, "fail:"+name)
				return nil
			},
		}
	}
	cc := NewContext(Input{})
	cc.MarkFinalized()

	ce := NewExecutor(nil).RunPostCapture(context.Background(), []Step{mk("a", nil), mk("b", errors.New("issue failed"))}, cc)
	require.NotNil(t, ce)
	assert.Equal(t, KindPostCapture, ce.Kind)
	assert.Equal(t, []string{"exec:a", "exec:b", "rollback:a", "fail:b", "fail:a"}, calls)
}

func TestRunFinalize_CollectsFailures(t *testing.T) {
	var ran []string
	mk := func(name string, fail error) Step {
		return Step{Name: name, Phase: PhaseFinalize, Execute: func(ctx context.Context, cc *Context) error {
			ran = append(ran, name)
			return fail
		}}
	}
	errs := NewExecutor(nil).RunFinalize(context.Background(),
		[]Step{mk("a", errors.New("x")), mk("b", nil), mk("c", errors.New("y"))}, NewContext(Input{}))
	assert.Equal(t, []string{"a", "b", "c"}, ran)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "a")
	assert.Contains(t, errs[1].Error(), "c")
}

func TestRunFinalize_MarksPhaseSpanOnFailure(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	phaseStatus := func() codes.Code {
		for _, span := range sr.Ended() {
			if span.Name() != "checkout.phase" {
				continue
			}
			for _, kv := range span.Attributes() {
				if kv.Key == attribute.Key("checkout.phase") && kv.Value.AsString() == string(PhaseFinalize) {
					return span.Status().Code
				}
			}
		}
		t.Fatal("finalize phase span not recorded")
		return codes.Unset
	}

	failing := Step{Name: "publish", Phase: PhaseFinalize, Execute: func(ctx context.Context, cc *Context) error {
		return errors.New("broker down")
	}}
	errs := NewExecutor(nil).RunFinalize(context.Background(), []Step{failing}, NewContext(Input{}))
	require.Len(t, errs, 1)
	assert.Equal(t, codes.Error, phaseStatus())
}
