/*
Package tracing provides lightweight request tracing.

# Overview

Every API request gets a span; document loads started by the request get a
child span, and the trace context travels to the origin server in the
X-Trace-ID and X-Span-ID headers. Finished spans are logged off the request
path by a buffered collector.

# Usage

	tracer := tracing.New("cacheonhover", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "document.load")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

	header := http.Header{}
	tracing.Inject(ctx, header)
*/
package tracing
