package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	flow "github.com/seoyhaein/flow-go"
	"github.com/seoyhaein/flow-go/internal/config"
)

var version = "v0.1.0"

// app carries state shared by the subcommands of one invocation.
type app struct {
	cfgFile string
	envFile string
	cfg     config.Config
	log     *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	d := config.Defaults()

	root := &cobra.Command{
		Use:           "flowctl",
		Short:         "Run and inspect node graphs",
		Long:          `flowctl loads a node graph from a YAML file and runs, validates or renders it.`,
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(
				config.WithConfigFile(a.cfgFile),
				config.WithEnvFile(a.envFile),
				config.WithFlags(cmd.Flags()),
			)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.setupLogging(cmd)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (yaml)")
	pf.StringVar(&a.envFile, "env-file", "", "dotenv file with FLOWCTL_* overrides")
	pf.String("log-level", d.LogLevel, "log level: trace, debug, info, warn or error")
	pf.Bool("log-json", d.LogJSON, "write logs as JSON")
	pf.StringP("output", "o", d.Output, "output format: table or json")

	root.AddCommand(newRunCmd(a), newValidateCmd(a), newMermaidCmd(a), newKindsCmd(a))
	return root
}

func (a *app) setupLogging(cmd *cobra.Command) {
	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	level, err := logrus.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
		log.WithError(err).Warn("unknown log level, using info")
	}
	log.SetLevel(level)
	if a.cfg.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	a.log = log
	flow.SetLogger(log)
}
