package commands

import (
	"flag"
	"fmt"
	"os"

	"github.com/agiangrant/gobridge"
)

// Init implements the 'gobridge init' command
func Init(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	name := fs.String("module", "", "Module base name (default gobackend)")
	path := fs.String("path", "", "Explicit module path")
	force := fs.Bool("force", false, "Overwrite an existing gobridge.toml")
	fs.Parse(args)

	if _, err := os.Stat(gobridge.DefaultConfigFile); err == nil && !*force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", gobridge.DefaultConfigFile)
	}

	config := gobridge.DefaultConfig()
	if *name != "" {
		config.Module.Name = *name
	}
	config.Module.Path = *path

	if err := gobridge.SaveConfig(gobridge.DefaultConfigFile, config); err != nil {
		return err
	}
	fmt.Printf("  ✓ Created %s\n", gobridge.DefaultConfigFile)
	return nil
}
