package main

import (
	"fmt"

	"robotrenamer/internal/app"
	"robotrenamer/internal/records"
	"robotrenamer/ioc"

	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	file       string
	from       int
	count      string
	prod       bool
	logFile    string
	resultFile string
	cron       string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "robotrenamer",
		Short: "Rename Orchestrator robots in bulk from a CSV file",
		Long: `Rename Orchestrator robots in bulk from a CSV file.

The CSV file has a header line followed by rows of:
  unit, old name, enabled, machine, user name, new name

Without --prod every row is only looked up and reported (dry run).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", app.DefaultConfigPath, "configuration file")
	pf.StringVar(&opts.file, "file", "", "robots information csv file")
	pf.IntVar(&opts.from, "from", 1, "starting line number, header line excluded")
	pf.StringVar(&opts.count, "count", "1", "number of records to process, or 'all' for every remaining record")
	pf.BoolVar(&opts.prod, "prod", false, "actually update robots in Orchestrator (dry run otherwise)")
	pf.StringVar(&opts.logFile, "log", "", "run log file (default update.log)")
	pf.StringVar(&opts.resultFile, "result", "", "result file, one JSON line per record (default results.jsonl)")

	root.AddCommand(newRunCommand(opts), newScheduleCommand(opts))
	return root
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process the CSV file once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			runner, cleanup, err := InitRunner(cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			_, err = runner.Run(cmd.Context())
			return err
		},
	}
}

func newScheduleCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Process the CSV file repeatedly on a cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("cron") {
				cfg.Schedule.Cron = opts.cron
			}
			scheduler, cleanup, err := InitScheduler(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			stop, err := scheduler.Start(ctx)
			if err != nil {
				return err
			}
			<-ctx.Done()
			stop()
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.cron, "cron", "", "cron expression (default from config, then \"0 7 * * *\")")
	return cmd
}

// loadConfig 读取配置文件，再用显式传入的命令行参数覆盖。
func loadConfig(cmd *cobra.Command, opts *options) (app.Config, error) {
	flags := cmd.Flags()
	cfg, err := ioc.InitConfig(opts.configPath, flags.Changed("config"))
	if err != nil {
		return app.Config{}, err
	}
	if flags.Changed("file") {
		cfg.CSV.File = opts.file
	}
	if flags.Changed("from") {
		cfg.CSV.From = opts.from
	}
	if flags.Changed("count") {
		count, err := records.ParseCount(opts.count)
		if err != nil {
			return app.Config{}, fmt.Errorf("--count: %w", err)
		}
		cfg.CSV.Count = count
	}
	if flags.Changed("prod") {
		cfg.Prod = opts.prod
	}
	if flags.Changed("log") {
		cfg.Log.File = opts.logFile
	}
	if flags.Changed("result") {
		cfg.Result.File = opts.resultFile
	}
	return cfg, nil
}
