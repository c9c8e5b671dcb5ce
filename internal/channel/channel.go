// Package channel invokes named methods on an engine over its messenger.
//
// Delivery is one-way and best-effort: Send returns once the engine's
// messenger has accepted the bytes, never waits for the method to run, and
// never retries. A missing listener surfaces as engine.ErrNoListener so the
// caller can log it.
package channel

import (
	"benwidget/internal/engine"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var ErrUnbound = errors.New("channel has no engine messenger")

type Channel struct {
	name      string
	messenger engine.Messenger
}

// Bind names a channel on handle's messenger. The engine side does not need
// to be listening yet.
func Bind(handle *engine.Handle, name string) *Channel {
	return &Channel{
		name:      name,
		messenger: handle.Messenger(),
	}
}

func (c *Channel) Name() string {
	return c.name
}

func (c *Channel) Send(method string, args any) error {
	if c == nil || c.messenger == nil {
		return ErrUnbound
	}

	encodedArgs, err := encodeArgs(args)
	if err != nil {
		return err
	}

	message, err := encodeCommand(Command{
		Channel: c.name,
		Method:  method,
		Args:    encodedArgs,
	})
	if err != nil {
		return err
	}

	if err := c.messenger.Send(c.name, message); err != nil {
		return fmt.Errorf("send %s on %s: %w", method, c.name, err)
	}

	return nil
}

// Handler runs on the engine side for every decoded command.
type Handler func(command Command)

// Listen registers handler for commands arriving on name. The returned func
// removes the listener.
func Listen(messenger engine.Messenger, name string, handler Handler, logger logrus.FieldLogger) func() {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithFields(logrus.Fields{"component": "channel", "channel": name})

	messenger.SetMessageHandler(name, func(message []byte) {
		command, err := decodeCommand(message)
		if err != nil {
			log.WithError(err).Warn("dropping undecodable message")
			return
		}
		handler(command)
	})

	return func() {
		messenger.SetMessageHandler(name, nil)
	}
}
