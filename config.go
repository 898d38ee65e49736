package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix         = "MEMORYLANE"
	minSessionTimeout = time.Second
)

type Config struct {
	bind           string
	correctDelay   time.Duration
	envFile        string
	memories       string
	music          string
	photos         string
	port           int
	prefix         string
	profile        bool
	seed           uint64
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
	wrongDelay     time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.correctDelay < 0 || c.wrongDelay < 0 {
		return errors.New("--correct-delay and --wrong-delay must not be negative")
	}
	if c.sessionTimeout < 0 || (c.sessionTimeout > 0 && c.sessionTimeout < minSessionTimeout) {
		return fmt.Errorf("invalid session timeout (must be 0 or at least %s): %s", minSessionTimeout, c.sessionTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// bindEnv copies MEMORYLANE_* values into any flag not set on the command line.
// An --env-file, if given, is loaded first so its values are visible here.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) error {
	envFile, _ := fs.GetString("env-file")
	if envFile == "" {
		_ = v.BindEnv("env-file")
		envFile = v.GetString("env-file")
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if e := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); e != nil && err == nil {
				err = fmt.Errorf("invalid value for %s: %w", f.Name, e)
			}
		}
	})

	return err
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

func newCmd(cfg *Config) *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:           "memorylane",
		Short:         "A photo guessing game: when was this memory made?",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindEnv(v, cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: MEMORYLANE_BIND)")
	fs.DurationVar(&cfg.correctDelay, "correct-delay", 2*time.Second, "time a correct answer is shown before the next photo (env: MEMORYLANE_CORRECT_DELAY)")
	fs.StringVar(&cfg.envFile, "env-file", "", "dotenv file to load before reading environment variables (env: MEMORYLANE_ENV_FILE)")
	fs.StringVarP(&cfg.memories, "memories", "m", "memories.json", "path to memory manifest, json or yaml (env: MEMORYLANE_MEMORIES)")
	fs.StringVar(&cfg.music, "music", "", "path to background music track (env: MEMORYLANE_MUSIC)")
	fs.StringVar(&cfg.photos, "photos", "photos", "directory containing photos named in the manifest (env: MEMORYLANE_PHOTOS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: MEMORYLANE_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: MEMORYLANE_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: MEMORYLANE_PROFILE)")
	fs.Uint64Var(&cfg.seed, "seed", 0, "shuffle seed, 0 for random (env: MEMORYLANE_SEED)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are ended, 0 to disable (env: MEMORYLANE_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: MEMORYLANE_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: MEMORYLANE_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: MEMORYLANE_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: MEMORYLANE_VERSION)")
	fs.DurationVar(&cfg.wrongDelay, "wrong-delay", 1500*time.Millisecond, "time a wrong answer is shown before retrying (env: MEMORYLANE_WRONG_DELAY)")

	cmd.AddCommand(newGenerateCmd())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("memorylane v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
