// Package context carries storyflow services through context.Context so
// flowgraph nodes can reach them.
//
// Injection functions:
//   - WithGenerator/Generator: story generator
//   - WithIssues/Issues: tracker issue client
//   - WithPrompt/Prompt: prompt loader
//   - WithMetrics/Metrics: Prometheus recorder (nil-safe)
//   - WithLogger/Logger: structured logger, slog.Default when absent
//   - WithSite/SiteFrom: project key and Jira URL shown in previews
//
// Services builds everything from config.Settings:
//
//	services, err := context.NewServices(ctx, context.Config{
//	    Settings: settings,
//	    Logger:   logger,
//	    Metrics:  metrics.New(),
//	})
//	defer services.Close()
//	ctx = services.InjectAll(ctx)
//
//	gen := context.MustGenerator(ctx)
package context
