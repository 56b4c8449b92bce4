// Package engine wires the queued subsystems together and provides the
// primary application-level API for enqueuing and processing jobs.
//
// The engine sits above the store backends, worker pool, hook registry,
// DLQ service, and cron scheduler, and below the application layer. It
// owns the default middleware chain and the component lifecycle; nothing
// in it implements queue semantics itself.
//
// # Building an Engine
//
//	s := memory.New()
//	eng, err := engine.New(s,
//	    engine.WithConcurrency(8),
//	    engine.WithPollInterval(time.Second),
//	    engine.WithCommandTimeout(5*time.Minute),
//	    engine.WithHook(hook.NewMetricsHook()),
//	)
//
// # Enqueuing and Processing
//
//	_, err = eng.Enqueue(ctx, "report-42", "generate-report --id 42",
//	    job.WithMaxRetries(5))
//
//	if err := eng.Start(ctx); err != nil { ... }
//	defer eng.Stop(context.Background())
//
// Run blocks until the context is cancelled, then shuts down gracefully:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	err := eng.Run(ctx)
package engine
