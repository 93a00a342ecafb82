// Package trace provides the tracing subsystem of the test runner.
//
// Events are grouped by scope: a run, one test case, one pipeline stage of
// a case, and details such as fix rounds. The level selects how deep the
// output goes; warnings (normalization residue, compiler crashes) are
// emitted at every level except off.
//
//	uitest run --trace=- --trace-level=phase ui/
//
// Tracers travel through the pipeline via context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeStage, tc.ID, "invoke")
//	defer span.End("")
package trace
