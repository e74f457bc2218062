package sources

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// commandTimeout caps how long one context command may run. Slow commands
// must not hold the whole round hostage.
const commandTimeout = 15 * time.Second

// commandSource runs a shell command and captures stdout as context.
type commandSource struct {
	name    string
	command string
}

func (s *commandSource) Name() string { return s.name }

func (s *commandSource) Collect(ctx context.Context) (string, error) {
	if s.command == "" {
		return "", fmt.Errorf("no command configured")
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", s.command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("command failed: %w: %s", err, stderr.String())
		}
		return "", fmt.Errorf("command failed: %w", err)
	}
	return stdout.String(), nil
}
