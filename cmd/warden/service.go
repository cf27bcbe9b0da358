package main

import (
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/arenvik/warden/pkg/app"
)

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage warden as a system service",
	}
	cmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	cmd.AddCommand(
		serviceControlCmd("install", "Install warden as a system service"),
		serviceControlCmd("uninstall", "Remove the warden system service"),
		serviceControlCmd("start", "Start the installed service"),
		serviceControlCmd("stop", "Stop the installed service"),
		serviceRunCmd(),
	)
	return cmd
}

func serviceControlCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(cmd)
			if err != nil {
				return err
			}
			if err := service.Control(svc, action); err != nil {
				return fmt.Errorf("service %s: %w", action, err)
			}
			fmt.Printf("Service %s: done\n", action)
			return nil
		},
	}
}

func serviceRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager (invoked by the manager, not by hand)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(cmd)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}
}

func newService(cmd *cobra.Command) (service.Service, error) {
	cfgPath, _ := cmd.Flags().GetString("config")

	svcCfg := &service.Config{
		Name:        "warden",
		DisplayName: "Warden",
		Description: "Tool-approval and trust-tier engine for LLM personal assistants",
		Arguments:   []string{"service", "run"},
	}
	if cfgPath != "" {
		svcCfg.Arguments = append(svcCfg.Arguments, "--config", cfgPath)
	}

	return service.New(&program{configPath: cfgPath}, svcCfg)
}

// program adapts the app lifecycle to the service manager's Start/Stop
// callbacks, which must not block.
type program struct {
	configPath string
	env        *app.Env
}

func (p *program) Start(service.Service) error {
	env, err := app.Build(app.RunParams{
		ConfigPath: p.configPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
	}, nil)
	if err != nil {
		return err
	}
	if err := env.App.Start(); err != nil {
		env.Close()
		return err
	}
	p.env = env
	return nil
}

func (p *program) Stop(service.Service) error {
	if p.env == nil {
		return nil
	}
	p.env.App.Stop()
	p.env.Close()
	p.env = nil
	return nil
}
