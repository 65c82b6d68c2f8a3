/*
Package monitoring collects Prometheus metrics for the prefetch host.

Metrics implements prefetch.Recorder and tabgate.Recorder so engines and the
gate report hints and verdicts directly. HTTP traffic is
recorded by Middleware; the page loader reports load outcomes through
RecordPageLoad and breakers their transitions through BreakerStateChange.

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
