package main

import (
	"github.com/scott-cotton/cli"
)

func MainCommand() *cli.Command {
	cfg := &MainConfig{}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Main, "ng").
		WithSynopsis("ng [opts] command [opts]").
		WithDescription("ng runs node graph scenarios and shows the events they produce.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return ngMain(cfg, cc, args)
		}).
		WithSubs(
			TraceCommand(cfg),
			DiffCommand(cfg))
}

func TraceCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &TraceConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Trace, "trace").
		WithAliases("t", "tr").
		WithSynopsis("trace [-expect file] scenario.yaml").
		WithDescription("run a scenario, printing the events of each step and the final node states").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return trace(cfg, cc, args)
		})
}

func DiffCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &DiffConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Diff, "diff").
		WithAliases("d", "di").
		WithSynopsis("diff a b").
		WithDescription("diff two trace files").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return diff(cfg, cc, args)
		})
}
