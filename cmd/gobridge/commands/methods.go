package commands

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/agiangrant/gobridge"
)

// Methods implements the 'gobridge methods' command
func Methods(args []string) error {
	fs := flag.NewFlagSet("methods", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print the table as JSON")
	fs.Parse(args)

	methods := gobridge.Methods()

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(methods)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tEXPORT\tSHAPE\tKEYS\tUNFORWARDED")
	for _, m := range methods {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			m.Method, m.Export, m.Shape, dash(m.Keys), dash(m.Unforwarded))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d methods\n", len(methods))
	return nil
}

func dash(ss []string) string {
	if len(ss) == 0 {
		return "-"
	}
	return strings.Join(ss, ",")
}
