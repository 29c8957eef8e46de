package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

type validateCommand struct {
	scenario string
}

func (cmd *validateCommand) Name() string {
	return "validate"
}

func (cmd *validateCommand) Help() string {
	return "Check a scenario file against the scenario schema"
}

func (cmd *validateCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.scenario, "scenario", "", "scenario file (required)")
}

func (cmd *validateCommand) Run(w io.Writer) error {
	if cmd.scenario == "" {
		return errors.New("missing -scenario required flag")
	}
	s, err := loadScenario(cmd.scenario)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d cycles, %d sink groups, %d source groups, %d routes\n",
		cmd.scenario, s.Cycles, len(s.SinkGroups), len(s.SourceGroups), len(s.Routes))
	return nil
}
