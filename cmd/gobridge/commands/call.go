package commands

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/oklog/ulid/v2"

	"github.com/agiangrant/gobridge"
	"github.com/agiangrant/gobridge/internal/channel"
)

// Call implements the 'gobridge call' command
func Call(args []string) error {
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to gobridge.toml")
	channelFlag := fs.String("channel", "backend", "Channel: backend, audio, or a full channel name")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: gobridge call [options] <method> [json-args]")
	}
	method := fs.Arg(0)

	var callArgs any
	if fs.NArg() > 1 {
		v, err := channel.DecodeArgs(json.RawMessage(fs.Arg(1)))
		if err != nil {
			return fmt.Errorf("invalid json-args: %w", err)
		}
		callArgs = v
	}

	s, err := openSession(*configPath)
	if err != nil {
		return err
	}
	defer s.Close()

	resp := s.bridge.Dispatch(s.channelName(*channelFlag), gobridge.MethodCall{
		ID:     ulid.Make().String(),
		Method: method,
		Args:   callArgs,
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}

	switch resp.Status {
	case gobridge.StatusError:
		return fmt.Errorf("%s: %s", resp.Code, resp.Message)
	case gobridge.StatusNotImplemented:
		return fmt.Errorf("method %s is not implemented on channel %s", method, s.channelName(*channelFlag))
	}
	return nil
}
