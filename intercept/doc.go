// Package intercept assembles an ordered chain of interceptors around an
// http.RoundTripper.
//
// Every interceptor belongs to a category of the ordering index:
//
//	KeyDefault        0
//	KeyTracing        1
//	KeyAuthentication 2
//	KeyHeaders        3
//	KeyLogging        4
//	KeyMetrics        5
//	KeyResiliency     6
//	KeyHooks          7
//
// An Assembler inserts entries with InsertByOrder, so the chain it builds
// is sorted by category no matter in which order interceptors were added.
// Interceptors of the same category keep their registration order. The
// first entry of a chain is the outermost wrapper; the last one runs
// closest to the base transport.
//
//	hooks, err := intercept.Hooks(intercept.HooksConfig{OnError: report})
//	chain, err := intercept.NewAssembler().
//	    Add(hooks).
//	    Add(intercept.Authentication(source)).
//	    Add(intercept.Tracing(tracer, nil)).
//	    Build()
//	client := &http.Client{Transport: chain.RoundTripper(http.DefaultTransport)}
//
// A Chain is immutable and safe for concurrent use. Interceptors clone a
// request before changing it.
package intercept
