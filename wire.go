//go:build wireinject

package main

import (
	"robotrenamer/internal/app"
	"robotrenamer/internal/job"
	"robotrenamer/ioc"

	"github.com/google/wire"
)

func InitRunner(cfg app.Config) (*app.Runner, func(), error) {
	panic(wire.Build(ioc.RunnerSet))
}

func InitScheduler(cfg app.Config) (*job.Scheduler, func(), error) {
	panic(wire.Build(
		ioc.RunnerSet,
		ioc.InitScheduler,
	))
}
