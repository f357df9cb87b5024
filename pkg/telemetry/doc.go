// Package telemetry provides logging, tracing, metrics and events for the
// singleton compiler.
//
// # Components
//
//  1. Logger - zerolog with component and compilation fields
//  2. Tracer - OpenTelemetry spans, exported to stdout or OTLP/gRPC
//  3. Metrics - Prometheus counters on a private registry
//  4. EventPublisher - declaration and compilation events
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Logging.Level = "debug"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//	op := telemetry.StartOperation(ctx, "compile")
//	defer op.End(err)
//
// # Metrics
//
//	<namespace>_compilations_total{status}
//	<namespace>_compilation_duration_seconds{status}
//	<namespace>_catalog_resources
//	<namespace>_declarations_total{flavor,outcome}
//	<namespace>_lookups_total{tier,found}
//	<namespace>_item_errors_total{code}
//	<namespace>_policy_violations_total{policy,severity}
//
// A disabled Metrics, Tracer or EventPublisher is safe to call; it records
// nothing.
package telemetry
