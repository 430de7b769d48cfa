package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"sessionq/internal/config"
	"sessionq/internal/ipc"
	"sessionq/internal/services"
)

var errDaemonUnavailable = errors.New("sessionq daemon unavailable")

// commandContext carries the persistent flags and lazily loaded config shared
// by every subcommand.
type commandContext struct {
	socketFlag *string
	configFlag *string
	jsonFlag   *bool

	load       sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{socketFlag: socketFlag, configFlag: configFlag, jsonFlag: jsonFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.load.Do(func() {
		cfg, resolved, _, err := config.Load(flagValue(c.configFlag))
		if err == nil {
			err = cfg.EnsureDirectories()
		}
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", "", err)
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// socketPath prefers --socket, then the configured state directory.
func (c *commandContext) socketPath() string {
	if socket := flagValue(c.socketFlag); socket != "" {
		return socket
	}
	return defaultSocketPath(c.configValue())
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (c *commandContext) dialClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(err, socket)
	}
	return client, nil
}

func wrapDialError(err error, socket string) error {
	var hint string
	switch {
	case errors.Is(err, syscall.ENOENT), errors.Is(err, os.ErrNotExist):
		hint = fmt.Sprintf("socket %s not found; start it with `sessionq daemon`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		hint = fmt.Sprintf("socket %s refused the connection; the daemon may have exited", socket)
	default:
		return fmt.Errorf("%w: %w", errDaemonUnavailable, err)
	}
	return fmt.Errorf("%w: %s", errDaemonUnavailable, hint)
}

func defaultSocketPath(cfg *config.Config) string {
	if cfg != nil {
		return cfg.SocketPath()
	}
	if dir, err := config.ExpandPath(config.Default().Paths.StateDir); err == nil {
		return filepath.Join(dir, config.SocketFileName)
	}
	return filepath.Join(os.TempDir(), config.SocketFileName)
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
