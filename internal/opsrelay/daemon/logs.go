package daemon

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	tail "github.com/hpcloud/tail"

	"github.com/dimasma0305/opsrelay/internal/log"
)

// ShowRecentLogs prints the last few log lines if the log file exists.
func ShowRecentLogs(logFile string) {
	if _, err := os.Stat(logFile); err != nil {
		return
	}

	log.Info("Recent activity (last 5 lines):")

	cmd := exec.Command("tail", "-n", "5", logFile)
	output, err := cmd.Output()
	if err != nil {
		log.Info("   (unable to read log file)")
		return
	}

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			log.Info("   %s", strings.TrimSpace(line))
		}
	}
}

// FollowLogs tails the daemon log until interrupted, reopening the
// file across rotations.
func FollowLogs(logFile string) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	t, err := tail.TailFile(logFile, tail.Config{
		ReOpen:    true,
		Follow:    true,
		MustExist: false,
		Poll:      true,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
	})
	if err != nil {
		return fmt.Errorf("failed to tail log file: %w", err)
	}
	defer t.Cleanup()

	ShowRecentLogs(logFile)
	fmt.Println()

	for {
		select {
		case <-sigChan:
			fmt.Println("\nLog following stopped.")
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return fmt.Errorf("log tail channel closed")
			}
			if line == nil || strings.TrimSpace(line.Text) == "" {
				continue
			}
			fmt.Println(line.Text)
		}
	}
}
