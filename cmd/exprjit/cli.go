package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"github.com/xyproto/exprjit/builtins"
	"github.com/xyproto/exprjit/codegen"
	"github.com/xyproto/exprjit/config"
	"github.com/xyproto/exprjit/expr"
	"github.com/xyproto/exprjit/internal/logging"
	"github.com/xyproto/exprjit/jit"
)

// flag names
const (
	verboseFlagName = "verbose"
	seedFlagName    = "seed"
	noColorFlagName = "no-color"
	archFlagName    = "arch"
)

// CommandContext holds the execution context for a CLI command
type CommandContext struct {
	In     *bufio.Reader
	Out    io.Writer
	ErrOut io.Writer
	Config *config.Config
}

func newApp(in io.Reader, out, errOut io.Writer) *cli.App {
	ctx := &CommandContext{In: bufio.NewReader(in), Out: out, ErrOut: errOut}
	return &cli.App{
		Name:      "exprjit",
		Usage:     "compile an arithmetic expression to native code and run it",
		ArgsUsage: "FILE",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    verboseFlagName,
				Aliases: []string{"v"},
				Usage:   "log tokens, IR and code sizes, and print compile metrics, to stderr",
			},
			&cli.Uint64Flag{
				Name:  seedFlagName,
				Usage: "seed for rand, for repeatable runs",
			},
			&cli.BoolFlag{
				Name:  noColorFlagName,
				Usage: "disable colored output",
			},
		},
		Before: ctx.setup,
		After:  ctx.report,
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.ShowAppHelp(c)
			}
			return cmdRun(ctx, c.Args().First())
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "compile FILE, read four integers from stdin and print the result",
				ArgsUsage: "FILE",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("run takes exactly one FILE")
					}
					return cmdRun(ctx, c.Args().First())
				},
			},
			{
				Name:      "eval",
				Usage:     "evaluate EXPR with up to four integer inputs",
				ArgsUsage: "EXPR [N...]",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return errors.New("eval needs an expression")
					}
					return cmdEval(ctx, c.Args().First(), c.Args().Tail())
				},
			},
			{
				Name:      "dump",
				Usage:     "print the expression, its IR and the machine code",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  archFlagName,
						Usage: "architecture to assemble for: amd64 or arm64 (default: host)",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("dump takes exactly one FILE")
					}
					arch := ctx.Config.Arch
					if c.IsSet(archFlagName) {
						a, err := codegen.ParseArch(c.String(archFlagName))
						if err != nil {
							return err
						}
						arch = a
					}
					return cmdDump(ctx, c.Args().First(), arch)
				},
			},
		},
	}
}

// setup reads the environment, applies the global flags and installs the
// logger and the built-in runtime
func (ctx *CommandContext) setup(c *cli.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if c.Bool(verboseFlagName) {
		cfg.Verbose = true
	}
	if c.IsSet(seedFlagName) {
		cfg.SetSeed(c.Uint64(seedFlagName))
	}
	if c.Bool(noColorFlagName) {
		cfg.NoColor = true
	}
	if cfg.NoColor {
		color.NoColor = true
	}
	logging.Init(cfg.Verbose)

	if cfg.HasSeed {
		builtins.SetDefault(builtins.NewSeeded(ctx.Out, cfg.Seed))
	} else {
		builtins.SetDefault(builtins.New(ctx.Out))
	}
	ctx.Config = cfg
	return nil
}

// report prints the compile metrics in verbose mode
func (ctx *CommandContext) report(c *cli.Context) error {
	if ctx.Config == nil || !ctx.Config.Verbose {
		return nil
	}
	return jit.WriteMetrics(ctx.ErrOut, prometheus.DefaultGatherer)
}

// parseSource parses source, keeping the source with any error for the
// caret snippet
func parseSource(source string) (expr.Expr, error) {
	for _, tok := range expr.Tokenize(source) {
		logging.L().Debugf("token %d:%d %s %q", tok.Line, tok.Col, tok.Type, tok.Value)
	}
	e, err := expr.Parse(source)
	if err != nil {
		return nil, &sourceError{source: source, err: err}
	}
	return e, nil
}

func readSource(filename string) (string, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return "", errors.Wrap(err, "failed to read the file")
	}
	return string(content), nil
}

// cmdRun compiles the file, prompts for the inputs and prints the result
func cmdRun(ctx *CommandContext, filename string) error {
	source, err := readSource(filename)
	if err != nil {
		return err
	}
	e, err := parseSource(source)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Parsed expression: %s\n", e)

	f, err := jit.Compile(e)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintln(ctx.Out, "Enter 4 numbers: ")
	line, err := ctx.In.ReadString('\n')
	if err != nil && err != io.EOF {
		return errors.Wrap(err, "failed to read the input")
	}
	in, err := ParseInputs(line)
	if err != nil {
		return err
	}

	result, err := f.Call(in[0], in[1], in[2], in[3])
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Result: %d\n", result)
	return nil
}

// cmdEval compiles source and calls it with args
func cmdEval(ctx *CommandContext, source string, args []string) error {
	e, err := parseSource(source)
	if err != nil {
		return err
	}
	in, err := ParseInputs(strings.Join(args, " "))
	if err != nil {
		return err
	}
	f, err := jit.Compile(e)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := f.Call(in[0], in[1], in[2], in[3])
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, result)
	return nil
}

// cmdDump prints the listing of the file for arch
func cmdDump(ctx *CommandContext, filename string, arch codegen.Arch) error {
	source, err := readSource(filename)
	if err != nil {
		return err
	}
	e, err := parseSource(source)
	if err != nil {
		return err
	}
	l, err := jit.Dump(e, arch)
	if err != nil {
		return err
	}
	fmt.Fprint(ctx.Out, l)
	return nil
}
