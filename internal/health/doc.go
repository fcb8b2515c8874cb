// Package health is the offline classification oracle.
//
// When no model is configured, repositories are classified by a set of
// monitors. Each monitor reads the captured snapshot (never the disk) and
// reports DiscoveredIssue values with flat cost and effort estimates:
//
//	dependency_auditor  stale pins in requirements.txt, old go directives, Log4j 1.x
//	god_class_monitor   source files over 500 lines, functions over 300 lines
//	security_monitor    hardcoded credentials, SQL built from strings
//	ml_monitor          models not retrained in 90 days, feature_N columns
//	pipeline_monitor    copies of the same ETL job, archived TB/PB storage
//
// Monitors collect facts. Severity and cost are re-derived by the normalizer,
// so the numbers reported here are starting points rather than verdicts.
//
// # Usage
//
//	oracle, err := health.NewOracle()
//	if err != nil {
//	    return err
//	}
//	findings, err := oracle.ClassifyRepository(ctx, snapshot)
//
// The oracle satisfies the same classifier contract as the AI supervisor, so
// the pipeline can swap one for the other.
package health
