// Package telemetry bootstraps OpenTelemetry for domainscope.
//
// # Usage
//
//	cfg := telemetry.NewDefaultConfig()
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(ctx)
//
// The tracer and meter providers feed sink.OTel, which turns instrumented
// business operations into spans and metrics.
//
// # Configuration
//
//	observability:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc        # grpc, http/protobuf, stdout
//	  service_name: "domainscope"
//	  sampling:
//	    rate: 1.0
//	  metrics:
//	    enabled: true
//	    export_interval: "15s"
//
// The stdout protocol pretty-prints spans to the console and exports no
// metrics.
//
// # Error Handling
//
// Telemetry failures do not crash the service. If a provider cannot be built
// the instance degrades to no-op providers and Health reports the reason.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	s := sink.NewOTel(tt, tt, nil)
//	...
//	tt.AssertSpanExists(t, "ecommerce.checkout.api_call")
package telemetry
