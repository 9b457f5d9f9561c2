package app

import (
	"context"
	"time"

	"github.com/farmshop/storefront/config"
	"github.com/farmshop/storefront/internal/server"
	shopgrpc "github.com/farmshop/storefront/pkg/grpc"
	"github.com/farmshop/storefront/pkg/schedule"
)

// Serve runs the HTTP and gRPC servers, the websocket hub, the in-process
// queue workers and the scheduler until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.Kernel.Run(ctx)

	if n := config.QueueWorkers(); n > 0 {
		a.Queue.StartWorkers(ctx, n)
	}

	health := shopgrpc.New()
	sched := a.Scheduler(health.SetServing)
	sched.Start(ctx)

	err := server.Start(ctx, a.Kernel.Handler(), health, server.Options{
		Addr:     ":" + config.AppPort(),
		GRPCAddr: ":" + config.GRPCPort(),
	})
	cancel()
	sched.Wait()
	a.Queue.Wait()
	return err
}

// Scheduler registers the periodic maintenance tasks. setServing receives
// the result of each database health probe.
func (a *App) Scheduler(setServing func(bool)) *schedule.Scheduler {
	s := schedule.New()
	s.Every(time.Minute).Name("active-orders").Immediately().Run(a.Kernel.Admin.RefreshActiveGauge)
	s.Every(15 * time.Second).Name("db-health").Run(func(ctx context.Context) error {
		err := a.Kernel.Ping(ctx)
		setServing(err == nil)
		return err
	})
	return s
}
