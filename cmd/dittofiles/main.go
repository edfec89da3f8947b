package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/config"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/permission"
	flag "github.com/spf13/pflag"
)

// command is one dittofiles subcommand.
type command struct {
	usage string
	help  string

	// mutating commands run inside one transaction
	run func(ctx context.Context, env *env, args []string) error
}

var commands = map[string]command{
	"init":      {usage: "init [--force]", help: "write the default configuration file", run: nil},
	"put":       {usage: "put <file> [--name N] [--private] [--folder F] [--attach doctype/name/field]", help: "store a file", run: runPut},
	"cat":       {usage: "cat <id>", help: "write a file's bytes to stdout", run: runCat},
	"ls":        {usage: "ls [folder]", help: "list a folder", run: runList},
	"mkdir":     {usage: "mkdir <name> [parent]", help: "create a folder", run: runMkdir},
	"mv":        {usage: "mv <id> <folder>", help: "move a file or folder", run: runMove},
	"rename":    {usage: "rename <id> <name>", help: "rename a file or folder", run: runRename},
	"rm":        {usage: "rm <id>...", help: "delete files or empty folders", run: runDelete},
	"private":   {usage: "private <id>", help: "make a file private", run: runPrivacy(true)},
	"public":    {usage: "public <id>", help: "make a file public", run: runPrivacy(false)},
	"zip":       {usage: "zip <out.zip> <id>...", help: "bundle files into an archive", run: runZip},
	"unzip":     {usage: "unzip <id>", help: "extract a stored archive", run: runUnzip},
	"thumbnail": {usage: "thumbnail <id>", help: "generate an image thumbnail", run: runThumbnail},
	"optimize":  {usage: "optimize <id>", help: "downscale and recompress an image", run: runOptimize},
	"gc":        {usage: "gc [--dry-run]", help: "delete unreferenced files", run: runGC},
	"serve":     {usage: "serve", help: "run periodic GC and the metrics endpoint", run: runServe},
}

// env is what every command receives.
type env struct {
	cfg   *config.Config
	rt    *config.Runtime
	actor permission.Actor
	flags *flag.FlagSet
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: dittofiles [--config path] [--user name] [--admin] <command> [args]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-48s %s\n", commands[name].usage, commands[name].help)
	}
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "dittofiles: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func run(argv []string) error {
	// ========================================================================
	// Step 1: Global flags and command lookup
	// ========================================================================

	global := flag.NewFlagSet("dittofiles", flag.ContinueOnError)
	global.SetInterspersed(false)
	global.Usage = usage
	configPath := global.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/dittofiles/config.yaml)")
	user := global.String("user", os.Getenv("USER"), "Acting user")
	admin := global.Bool("admin", false, "Act as administrator")
	logLevel := global.String("log-level", "", "Override logging.level")

	if err := global.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if global.NArg() == 0 {
		usage()
		return errors.New("missing command")
	}

	name, args := global.Arg(0), global.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		usage()
		return fmt.Errorf("unknown command %q", name)
	}

	if name == "init" {
		return runInit(*configPath, args)
	}

	// ========================================================================
	// Step 2: Configuration and logging
	// ========================================================================

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		return fmt.Errorf("failed to open log output: %w", err)
	}

	// ========================================================================
	// Step 3: Runtime
	// ========================================================================

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := config.CreateRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("Failed to close metadata store: %v", err)
		}
	}()

	e := &env{
		cfg:   cfg,
		rt:    rt,
		actor: permission.Actor{User: *user, Admin: *admin},
		flags: flag.NewFlagSet(name, flag.ContinueOnError),
	}
	return cmd.run(ctx, e, args)
}

func runInit(configPath string, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	force := fs.Bool("force", false, "Overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if configPath == "" {
		configPath, err = config.InitConfig(*force)
	} else {
		err = config.InitConfigToPath(configPath, *force)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", configPath)
	return nil
}

// exitCode maps store error kinds to distinct exit statuses.
func exitCode(err error) int {
	code, ok := metadata.ErrorCodeOf(err)
	if !ok {
		return 1
	}
	switch code {
	case metadata.ErrNotFound, metadata.ErrMissingOnDisk:
		return 3
	case metadata.ErrPermissionDenied:
		return 4
	default:
		return 2
	}
}
