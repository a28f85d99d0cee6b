package main

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/egonelbre/femtozip/fz"
)

// Config holds the settings that can be given in a TOML file. Command line
// flags take precedence over the file.
type Config struct {
	Strategy     string `toml:"strategy"`
	Dictionary   string `toml:"dictionary"`
	Model        string `toml:"model"`
	Suffix       string `toml:"suffix"`
	MaxDocuments int    `toml:"max_documents"`
	Parallelism  int    `toml:"parallelism"`
	Verbose      bool   `toml:"verbose"`
}

func defaultConfig() Config {
	return Config{
		Strategy:    fz.StrategyOptimal,
		Suffix:      ".fz",
		Parallelism: 4,
	}
}

// loadConfig reads the --config file, if any, and applies the flags that
// were set explicitly.
func loadConfig(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()
	if path := ctx.String(configFlag.Name); path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return cfg, errors.Wrapf(err, "reading config %s", path)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return cfg, errors.Errorf("config %s: unknown key %s", path, undecoded[0])
		}
	}

	if ctx.IsSet(strategyFlag.Name) {
		cfg.Strategy = ctx.String(strategyFlag.Name)
	}
	if ctx.IsSet(dictionaryFlag.Name) {
		cfg.Dictionary = ctx.String(dictionaryFlag.Name)
	}
	if ctx.IsSet(modelFlag.Name) {
		cfg.Model = ctx.String(modelFlag.Name)
	}
	if ctx.IsSet(suffixFlag.Name) {
		cfg.Suffix = ctx.String(suffixFlag.Name)
	}
	if ctx.IsSet(maxDocumentsFlag.Name) {
		cfg.MaxDocuments = ctx.Int(maxDocumentsFlag.Name)
	}
	if ctx.IsSet(parallelismFlag.Name) {
		cfg.Parallelism = ctx.Int(parallelismFlag.Name)
	}
	if ctx.IsSet(verboseFlag.Name) {
		cfg.Verbose = ctx.Bool(verboseFlag.Name)
	}

	if cfg.Parallelism < 1 {
		return cfg, errors.Errorf("parallelism must be positive, got %d", cfg.Parallelism)
	}
	if cfg.Suffix == "" {
		return cfg, errors.New("suffix must not be empty")
	}
	return cfg, nil
}
