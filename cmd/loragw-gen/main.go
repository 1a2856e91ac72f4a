// Command loragw-gen renders the lora_receiver block of a YAML config as
// firmware setup source.
//
//	loragw-gen -config node.yaml > main.cpp
//	loragw-gen -device pico
package main

import (
	"flag"
	"os"

	"loragw/codegen"
	"loragw/services/config"
	"loragw/services/receiver"

	"github.com/charmbracelet/log"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config")
	device := flag.String("device", "pico", "embedded config to use when -config is empty")
	section := flag.String("section", "lora_receiver", "config key holding the receiver block")
	check := flag.Bool("check", false, "validate only, print nothing")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "loragw-gen"})

	var (
		doc map[string]any
		err error
	)
	if *configPath != "" {
		doc, err = config.Load(*configPath)
	} else {
		doc, err = config.Embedded(*device)
	}
	if err != nil {
		logger.Fatal("load config", "err", err)
	}
	raw, err := config.Section(doc, *section)
	if err != nil {
		logger.Fatal("config", "err", err)
	}

	p := codegen.NewProgram()
	b := receiver.New[codegen.Expr](p, p, p, logger)
	cfg, err := b.Validate(raw)
	if err != nil {
		logger.Fatal("invalid "+*section, "err", err)
	}
	if *check {
		logger.Info("config ok", "id", cfg.ID, "sensors", len(cfg.Sensors))
		return
	}
	if _, err := b.Apply(cfg); err != nil {
		logger.Fatal("generate", "err", err)
	}
	if _, err := p.WriteTo(os.Stdout); err != nil {
		logger.Fatal("write", "err", err)
	}
}
