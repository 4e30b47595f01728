package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	LookupPath   string
	LogPaths     []string
	OutputDir    string
	ConfigPath   string
	ProtocolPath string
	Workers      int
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// parseFlags parses args (without the program name). Non-flag arguments are
// additional flow log paths and may appear anywhere, so that
// "--logs a.log b.log --output out" works.
func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var logs stringList
	fs.StringVar(&cfg.LookupPath, "lookup", "", "Path to the lookup table CSV (dstport,protocol,tag)")
	fs.Var(&logs, "logs", "Path to a flow log file; repeatable, further paths may follow the flags")
	fs.StringVar(&cfg.OutputDir, "output", "", "Directory for the <name>_output.csv files")
	fs.StringVar(&cfg.ConfigPath, "config", "", "Optional YAML configuration file")
	fs.StringVar(&cfg.ProtocolPath, "protocols", "", "Protocol number CSV (Decimal,Keyword); overrides protocol_file")
	fs.IntVar(&cfg.Workers, "workers", 0, "Maximum files processed concurrently; overrides batch.max_workers")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s --lookup <file> --output <dir> [options] --logs <file> [<file>...]\n\nOptions:\n", appName)
		fs.PrintDefaults()
	}

	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		i := 0
		for i < len(rest) && !isFlag(rest[i]) {
			i++
		}
		logs = append(logs, rest[:i]...)
		if i == len(rest) {
			break
		}
		args = rest[i:]
	}
	cfg.LogPaths = logs
	return cfg, validateFlags(cfg)
}

func isFlag(arg string) bool {
	return len(arg) > 1 && arg[0] == '-'
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.LookupPath == "" {
		return fmt.Errorf("--lookup is required")
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("--output is required")
	}
	if len(cfg.LogPaths) == 0 {
		return fmt.Errorf("at least one flow log file is required")
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("invalid worker count: %d", cfg.Workers)
	}
	return nil
}
