package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{
		in:       os.Stdin,
		out:      os.Stdout,
		errOut:   os.Stderr,
		stdinTTY: func() bool { return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) },
	}
	root := c.rootCmd()
	root.SetArgs(defaultToRun(root, args))
	return root.ExecuteContext(ctx)
}

// cli carries the process streams and the global flags shared by every
// subcommand.
type cli struct {
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	stdinTTY func() bool

	storeBackend string
	storePath    string
	configDir    string
	verbose      bool
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "consortium",
		Short: "Answer prompts with a consortium of models arbitrated to a consensus",
		Long: `consortium sends a prompt to several models in parallel, has an arbiter
model synthesize their answers, and repeats with refinement prompts until the
arbiter's confidence reaches the threshold or the iteration budget runs out.

With no subcommand the arguments are treated as "consortium run".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&c.storeBackend, "store", "", "storage backend: sqlite, kuzu or memory (default from consortium.yml, then sqlite)")
	pf.StringVar(&c.storePath, "store-path", "", "database path (default <config-dir>/logs.db)")
	pf.StringVar(&c.configDir, "config-dir", "", "directory holding consortium.yml and templates (default $"+"CONSORTIUM_HOME or the user config dir)")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "print progress to stderr")

	root.AddCommand(
		c.runCmd(),
		c.saveCmd(),
		c.listCmd(),
		c.removeCmd(),
		c.modelsCmd(),
		c.logsCmd(),
		c.serveCmd(),
		c.mcpCmd(),
	)
	return root
}

// valueFlags are root flags whose value is a separate argument.
var valueFlags = map[string]bool{
	"--store":      true,
	"--store-path": true,
	"--config-dir": true,
}

// defaultToRun inserts "run" when the first positional argument is not a
// subcommand, so that `consortium "prompt" -m x` works like
// `consortium run "prompt" -m x`.
func defaultToRun(root *cobra.Command, args []string) []string {
	rootOnly := true
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			rootOnly = false
		case valueFlags[a]:
			i++
			continue
		case strings.HasPrefix(a, "-"):
			name := a
			if eq := strings.IndexByte(a, '='); eq > 0 {
				name = a[:eq]
			}
			if !isRootFlag(name) {
				rootOnly = false
			}
			continue
		default:
			if isSubcommand(root, a) {
				return args
			}
			rootOnly = false
		}
		break
	}
	if rootOnly {
		return args
	}
	return append([]string{"run"}, args...)
}

func isRootFlag(name string) bool {
	switch name {
	case "-h", "--help", "--version", "-v", "--verbose":
		return true
	}
	return valueFlags[name]
}

func isSubcommand(root *cobra.Command, name string) bool {
	if name == "help" || name == "completion" {
		return true
	}
	for _, cmd := range root.Commands() {
		if cmd.Name() == name || cmd.HasAlias(name) {
			return true
		}
	}
	return false
}
