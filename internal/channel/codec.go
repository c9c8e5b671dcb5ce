package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedCommand = errors.New("malformed command")

// Command is one method invocation sent over a named channel.
type Command struct {
	Channel string          `json:"channel"`
	Method  string          `json:"method"`
	Args    json.RawMessage `json:"args,omitempty"`
}

func encodeCommand(command Command) ([]byte, error) {
	if strings.TrimSpace(command.Method) == "" {
		return nil, fmt.Errorf("%w: method is required", ErrMalformedCommand)
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("encode command %s: %w", command.Method, err)
	}

	return body, nil
}

func decodeCommand(message []byte) (Command, error) {
	var command Command
	if err := json.Unmarshal(message, &command); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if strings.TrimSpace(command.Method) == "" {
		return Command{}, fmt.Errorf("%w: method is required", ErrMalformedCommand)
	}

	return command, nil
}

func encodeArgs(args any) (json.RawMessage, error) {
	if args == nil {
		return nil, nil
	}

	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}

	return body, nil
}
