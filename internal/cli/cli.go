// Package cli wires the fsptool commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/nhdewitt/fsptool/internal/config"
	"github.com/nhdewitt/fsptool/internal/identity"
	"github.com/nhdewitt/fsptool/internal/logger"
	"github.com/nhdewitt/fsptool/internal/oserr"
	"github.com/nhdewitt/fsptool/internal/platform"
	"github.com/nhdewitt/fsptool/internal/volume"
	"github.com/nhdewitt/fsptool/internal/winfsp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const progName = "fsptool"

// Env supplies the OS facilities behind the commands.
type Env struct {
	VolumeSource func(winfsp.Options, zerolog.Logger) (volume.Source, error)
	Token        func(zerolog.Logger) (identity.Token, error)
	Directory    func(winfsp.Options, zerolog.Logger) (identity.Directory, error)
}

// DefaultEnv returns the live environment.
func DefaultEnv() Env {
	return Env{
		VolumeSource: volume.NewSource,
		Token:        identity.OpenProcessToken,
		Directory:    identity.NewDirectory,
	}
}

type app struct {
	env    Env
	stdout io.Writer
	stderr io.Writer

	configPath string
	cfg        *config.Config
	log        *logger.Logger
}

func (a *app) winfspOptions() winfsp.Options {
	return winfsp.Options{Dir: a.cfg.WinFsp.Dir, DLL: a.cfg.WinFsp.DLL}
}

// usageError is a bad command line. It exits with ERROR_INVALID_PARAMETER.
type usageError struct {
	cmd *cobra.Command
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() []error {
	return []error{e.err, oserr.ErrInvalidParameter}
}

func usage(cmd *cobra.Command, format string, args ...any) error {
	return &usageError{cmd: cmd, err: fmt.Errorf(format, args...)}
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usage(cmd, "%s takes %d argument(s), got %d", cmd.Name(), n, len(args))
		}
		return nil
	}
}

// Execute runs fsptool with args and returns the process exit code.
func Execute(env Env, args []string, stdout, stderr io.Writer) int {
	a := &app{
		env:    env,
		stdout: stdout,
		stderr: stderr,
		cfg:    config.Default(),
		log:    logger.New(logger.Config{Level: "warn"}, stderr),
	}

	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return 0
	}

	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprintf(stderr, "%s: %v\n\n", progName, uerr.err)
		fmt.Fprint(stderr, uerr.cmd.UsageString())
	} else {
		a.log.Error().Err(err).Msg("command failed")
	}

	return oserr.ExitCode(err)
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           progName + " COMMAND ARGS",
		Short:         "WinFsp diagnostic tool",
		Long:          "Inspect WinFsp volumes and the POSIX identity WinFsp maps the current user to.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usage(cmd, "unknown command %q", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return usage(cmd, "a command is required")
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			a.log = logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, a.stderr)

			info := platform.Detect()
			a.log.Debug().
				Str("os", info.OS).
				Str("arch", info.Arch).
				Str("dll", info.DLLName).
				Str("install_dir", info.InstallDir).
				Msg("platform detected")
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ./fsptool.yaml)")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error, off")
	flags.String("log-format", "", "log format: console or json")
	flags.String("winfsp-dir", "", "directory holding the WinFsp DLL")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usage(cmd, "%v", err)
	})
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newLsvolCommand(a),
		newIDCommand(a),
		newUIDToSIDCommand(a),
		newSIDToUIDCommand(a),
		newStubCommand("permtosd", "get security descriptor from POSIX permissions"),
		newStubCommand("sdtoperm", "get POSIX permissions from security descriptor"),
	)

	return root
}

func newLsvolCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lsvol",
		Short: "list file system devices (volumes)",
		Args:  exactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			log := a.log.WithComponent("volume").Logger

			src, err := a.env.VolumeSource(a.winfspOptions(), log)
			if err != nil {
				return err
			}

			return volume.NewEnumerator(src, log).List(a.stdout)
		},
	}
}

func newIDCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "get current user/group SID",
		Args:  exactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			log := a.log.WithComponent("identity").Logger

			tok, err := a.env.Token(log)
			if err != nil {
				return err
			}
			defer tok.Close()

			dir, err := a.env.Directory(a.winfspOptions(), log)
			if err != nil {
				return err
			}

			return identity.NewResolver(tok, dir, log).Report(a.stdout)
		},
	}
}

func newUIDToSIDCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "uidtosid UID",
		Short: "get SID from POSIX UID",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return usage(cmd, "invalid uid %q", args[0])
			}

			log := a.log.WithComponent("identity").Logger
			dir, err := a.env.Directory(a.winfspOptions(), log)
			if err != nil {
				return err
			}

			return identity.NewResolver(nil, dir, log).IDToSID(a.stdout, uint32(uid))
		},
	}
}

func newSIDToUIDCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sidtouid SID",
		Short: "get POSIX UID from SID",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			log := a.log.WithComponent("identity").Logger
			dir, err := a.env.Directory(a.winfspOptions(), log)
			if err != nil {
				return err
			}

			return identity.NewResolver(nil, dir, log).SIDToID(a.stdout, args[0])
		},
	}
}

func newStubCommand(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.ArbitraryArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return fmt.Errorf("%s: %w", name, oserr.ErrNotImplemented)
		},
	}
}
