// Command vaultctl drives a goVault engine from the shell: account
// registration, login, two-factor setup and reading or writing the
// encrypted vault.
//
// Settings come from flags, VAULTCTL_* environment variables and an optional
// YAML file (.vaultctl.yaml in $HOME or the working directory), in that
// order of precedence.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	goVault "github.com/MrEthical07/goVault"
	"github.com/MrEthical07/goVault/audit"
	"github.com/MrEthical07/goVault/store"
	"github.com/MrEthical07/goVault/store/redisstore"
	"github.com/MrEthical07/goVault/store/sqlitestore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var version = "dev"

func main() {
	a := newApp()
	err := newRootCmd(a).Execute()
	if cerr := a.close(); cerr != nil {
		fmt.Fprintln(os.Stderr, "vaultctl:", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}

// app carries per-invocation state shared by the subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	in      *bufio.Reader
	logger  *slog.Logger
	engine  *goVault.Engine
	closers []func() error
}

func newApp() *app {
	v := viper.New()
	defaults := goVault.DefaultConfig()

	v.SetDefault("store.type", "memory")
	v.SetDefault("store.dsn", "./vault.db")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_prefix", "gv")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("audit.log", false)
	v.SetDefault("password.memory", defaults.Password.Memory)
	v.SetDefault("password.time", defaults.Password.Time)
	v.SetDefault("kdf.memory", defaults.KeyDerivation.Memory)
	v.SetDefault("kdf.time", defaults.KeyDerivation.Time)
	v.SetDefault("kdf.concurrency", defaults.KeyDerivation.Concurrency)
	v.SetDefault("totp.issuer", defaults.TOTP.Issuer)
	v.SetDefault("lockout.max_attempts", defaults.Lockout.MaxAttempts)
	v.SetDefault("lockout.duration", defaults.Lockout.Duration)
	v.SetDefault("session.idle_timeout", defaults.Session.IdleTimeout)
	v.SetDefault("session.revoke_on_password_change", defaults.Session.RevokeOnPasswordChange)

	return &app{v: v}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "vaultctl",
		Short:        "Manage goVault accounts and encrypted vaults.",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.initConfig(); err != nil {
				return err
			}
			return a.open(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.vaultctl.yaml or ./.vaultctl.yaml)")
	flags.String("store", "memory", `storage backend ("memory", "sqlite", "redis")`)
	flags.String("dsn", "./vault.db", "SQLite database path")
	flags.String("redis-addr", "", "Redis address for the redis backend")
	flags.String("session", "", "session id returned by login")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")

	_ = a.v.BindPFlag("store.type", flags.Lookup("store"))
	_ = a.v.BindPFlag("store.dsn", flags.Lookup("dsn"))
	_ = a.v.BindPFlag("store.redis_addr", flags.Lookup("redis-addr"))
	_ = a.v.BindPFlag("session", flags.Lookup("session"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	cmd.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newSessionsCmd(a),
		newPasswdCmd(a),
		newDeleteAccountCmd(a),
		newEventsCmd(a),
		newSweepCmd(a),
		newReportCmd(a),
		newTwoFactorCmd(a),
		newVaultCmd(a),
		newBenchCmd(a),
	)
	return cmd
}

func (a *app) initConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home)
		}
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".vaultctl")
	}

	a.v.SetEnvPrefix("VAULTCTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && a.cfgFile == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func (a *app) engineConfig() goVault.Config {
	cfg := goVault.DefaultConfig()
	cfg.Password.Memory = a.v.GetUint32("password.memory")
	cfg.Password.Time = a.v.GetUint32("password.time")
	cfg.KeyDerivation.Memory = a.v.GetUint32("kdf.memory")
	cfg.KeyDerivation.Time = a.v.GetUint32("kdf.time")
	cfg.KeyDerivation.Concurrency = a.v.GetInt("kdf.concurrency")
	cfg.TOTP.Issuer = a.v.GetString("totp.issuer")
	cfg.Lockout.MaxAttempts = a.v.GetInt("lockout.max_attempts")
	cfg.Lockout.Duration = a.v.GetDuration("lockout.duration")
	cfg.Session.IdleTimeout = a.v.GetDuration("session.idle_timeout")
	cfg.Session.RevokeOnPasswordChange = a.v.GetBool("session.revoke_on_password_change")
	return cfg
}

func (a *app) newLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString("log.level"))); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch format := a.v.GetString("log.format"); format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	switch kind := a.v.GetString("store.type"); kind {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		s, err := sqlitestore.Open(ctx, a.v.GetString("store.dsn"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case "redis":
		addr := a.v.GetString("store.redis_addr")
		if addr == "" {
			// An embedded server keeps the redis path usable for benchmarks.
			mr, err := miniredis.Run()
			if err != nil {
				return nil, fmt.Errorf("start miniredis: %w", err)
			}
			addr = mr.Addr()
			a.closers = append(a.closers, func() error { mr.Close(); return nil })
			a.logger.Info("vaultctl: using embedded redis", slog.String("addr", addr))
		}
		client := redis.NewClient(&redis.Options{Addr: addr})
		a.closers = append(a.closers, client.Close)
		s := redisstore.New(client, a.v.GetString("store.redis_prefix"))
		if err := s.Ping(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store type %q", kind)
	}
}

func (a *app) open(cmd *cobra.Command) error {
	logger, err := a.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.logger = logger

	kv, err := a.openStore(cmd.Context())
	if err != nil {
		_ = a.close()
		return err
	}

	b := goVault.New().
		WithConfig(a.engineConfig()).
		WithStore(kv).
		WithLogger(logger)
	if a.v.GetBool("audit.log") {
		b = b.WithAuditSink(audit.NewSlogSink(logger, slog.LevelInfo))
	}
	engine, err := b.Build()
	if err != nil {
		_ = a.close()
		return err
	}
	a.engine = engine
	return nil
}

// close releases the engine before the backends it writes to.
func (a *app) close() error {
	if a.engine != nil {
		a.engine.Close()
		a.engine = nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// sessionID returns the session given by --session or VAULTCTL_SESSION.
func (a *app) sessionID() (string, error) {
	id := a.v.GetString("session")
	if id == "" {
		return "", errors.New("no session: pass --session or set VAULTCTL_SESSION")
	}
	return id, nil
}

// currentUser authenticates the session and returns its user.
func (a *app) currentUser(ctx context.Context) (goVault.User, goVault.Session, error) {
	id, err := a.sessionID()
	if err != nil {
		return goVault.User{}, goVault.Session{}, err
	}
	sess, err := a.engine.Authenticate(ctx, id)
	if err != nil {
		return goVault.User{}, goVault.Session{}, err
	}
	u, err := a.engine.GetUser(ctx, sess.UserID)
	if err != nil {
		return goVault.User{}, goVault.Session{}, err
	}
	return u, sess, nil
}

// readSecret prompts on stderr and reads without echo from a terminal, or a
// plain line from piped input.
func (a *app) readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return a.readLine(cmd)
}

func (a *app) readLine(cmd *cobra.Command) (string, error) {
	if a.in == nil {
		a.in = bufio.NewReader(cmd.InOrStdin())
	}
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) readNewPassword(cmd *cobra.Command, prompt string) (string, error) {
	pw, err := a.readSecret(cmd, prompt)
	if err != nil {
		return "", err
	}
	confirm, err := a.readSecret(cmd, "Confirm password: ")
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", errors.New("passwords do not match")
	}
	return pw, nil
}
