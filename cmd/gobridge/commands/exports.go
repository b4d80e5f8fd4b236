package commands

import (
	"flag"
	"fmt"
)

// Exports implements the 'gobridge exports' command
func Exports(args []string) error {
	fs := flag.NewFlagSet("exports", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to gobridge.toml")
	fs.Parse(args)

	s, err := openSession(*configPath)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.requireLoaded(); err != nil {
		return err
	}

	missing, err := s.bridge.MissingExports()
	if err != nil {
		return err
	}

	fmt.Printf("Module: %s\n", s.bridge.ModulePath())
	if len(missing) == 0 {
		fmt.Println("  ✓ All routed exports present")
		return nil
	}
	for _, name := range missing {
		fmt.Printf("  ✗ %s\n", name)
	}
	return fmt.Errorf("%d routed exports missing", len(missing))
}
