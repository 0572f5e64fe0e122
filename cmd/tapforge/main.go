// Command tapforge installs and maintains a plugin-based test-automation
// runtime by resolving a declarative image into a concrete package set.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
)

type command interface {
	Name() string
	Args() string
	ShortHelp() string
	LongHelp() string
	Register(*flag.FlagSet)
	Run(*Config, []string) int
}

func main() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to get working directory:", err)
		os.Exit(1)
	}
	c := &Config{
		Args:       os.Args,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		WorkingDir: wd,
	}
	os.Exit(c.Run())
}

// Config specifies a full configuration for a tapforge execution.
type Config struct {
	WorkingDir     string
	Args           []string
	Stdout, Stderr io.Writer
}

// Run executes a configuration and returns an exit code, per spec §6:
// 0 success, a distinct code for an unsatisfiable-image error, 1 for any
// other resolve or usage failure.
func (c *Config) Run() int {
	commands := []command{
		&imageCommand{},
	}

	errLogger := log.New(c.Stderr, "", 0)

	usage := func() {
		errLogger.Println("tapforge installs and maintains a plugin-based test-automation runtime")
		errLogger.Println()
		errLogger.Println("Usage: tapforge <command>")
		errLogger.Println()
		errLogger.Println("Commands:")
		errLogger.Println()
		w := tabwriter.NewWriter(c.Stderr, 0, 4, 2, ' ', 0)
		for _, cmd := range commands {
			fmt.Fprintf(w, "\t%s\t%s\n", cmd.Name(), cmd.ShortHelp())
		}
		w.Flush()
	}

	if len(c.Args) < 2 {
		usage()
		return 1
	}

	cmdName := c.Args[1]
	if strings.EqualFold(cmdName, "help") || strings.EqualFold(cmdName, "-h") {
		usage()
		return 1
	}

	for _, cmd := range commands {
		if cmd.Name() != cmdName {
			continue
		}
		fs := flag.NewFlagSet(cmdName, flag.ContinueOnError)
		fs.SetOutput(c.Stderr)
		cmd.Register(fs)
		fs.Usage = func() {
			errLogger.Printf("Usage: tapforge %s %s\n", cmdName, cmd.Args())
			errLogger.Println()
			errLogger.Println(strings.TrimSpace(cmd.LongHelp()))
		}
		if err := fs.Parse(c.Args[2:]); err != nil {
			return 1
		}
		return cmd.Run(c, fs.Args())
	}

	errLogger.Printf("tapforge: %s: no such command\n", cmdName)
	usage()
	return 1
}
