// Package bootstrap runs the service lifecycle: validate config, start the
// registered components in order, run hooks, wait for SIGINT/SIGTERM and
// shut everything down in reverse within a deadline.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(database.NewComponent(...))
//	app.OnStop(func(ctx context.Context) error { return orch.Shutdown(ctx) })
//	err = app.Run(ctx)
package bootstrap
