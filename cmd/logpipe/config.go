package main

import (
	"io"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/logpipe"
)

type configOptions struct {
	file      string
	overrides []string
	asYAML    bool
	save      string
}

func newConfigCommand() *cobra.Command {
	var opts configOptions
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective logger configuration",
		Long: "Print the effective logger configuration: defaults, then the [log] table of\n" +
			"--file, then --set overrides. The result is validated before printing.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.file, opts.overrides)
			if err != nil {
				return err
			}
			if opts.save != "" {
				if err := logpipe.SaveConfig(cfg, opts.save); err != nil {
					return err
				}
			}
			return writeConfig(cmd.OutOrStdout(), cfg, opts.asYAML)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.file, "file", "f", "", "TOML file with a [log] table")
	flags.StringArrayVar(&opts.overrides, "set", nil, "key=value override, repeatable")
	flags.BoolVar(&opts.asYAML, "yaml", false, "print YAML instead of TOML")
	flags.StringVar(&opts.save, "save", "", "also save the configuration as TOML to this path")
	return cmd
}

// writeConfig encodes cfg under a top level "log" key
func writeConfig(w io.Writer, cfg *logpipe.Config, asYAML bool) error {
	doc := map[string]*logpipe.Config{"log": cfg}
	if asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	return toml.NewEncoder(w).Encode(doc)
}
