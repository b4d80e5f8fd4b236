package main

import (
	"fmt"
	"os"

	"github.com/agiangrant/gobridge/cmd/gobridge/commands"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "init":
		err = commands.Init(args)
	case "call":
		err = commands.Call(args)
	case "methods":
		err = commands.Methods(args)
	case "exports":
		err = commands.Exports(args)
	case "serve":
		err = commands.Serve(args)
	case "version", "-v", "--version":
		fmt.Printf("gobridge version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`gobridge - native module method bridge

Usage: gobridge <command> [options]

Commands:
  init      Write a default gobridge.toml
  call      Call one method and print the response as JSON
  methods   List the method routing table
  exports   Load the module and report missing exports
  serve     Serve the method channels over WebSocket
  version   Print version information
  help      Show this help message

Examples:
  gobridge call parseSpotifyUrl '{"url":"https://open.spotify.com/track/1"}'
  gobridge call -channel audio getVersion
  gobridge call downloadTrack '"{\"isrc\":\"USUM71703861\"}"'
  gobridge exports -config ./gobridge.toml
  gobridge serve -listen 127.0.0.1:7878

Configuration:
  Settings are read from gobridge.toml in the working directory, or the file
  given with -config. GOBRIDGE_MODULE_PATH overrides the module location.`)
}
