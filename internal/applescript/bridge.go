// Package applescript drives the macOS Messages app through osascript to
// deliver SMS.
package applescript

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Runner executes AppleScript and launches apps. Abstracted so the bridge is
// testable off-macOS.
type Runner interface {
	Run(ctx context.Context, script string) (stdout, stderr string, err error)
	OpenApp(ctx context.Context, name string) error
}

type execRunner struct {
	bin string
}

// NewRunner returns a Runner backed by the osascript binary.
func NewRunner(bin string) Runner {
	if bin == "" {
		bin = "osascript"
	}
	return &execRunner{bin: bin}
}

func (r *execRunner) Run(ctx context.Context, script string) (string, string, error) {
	cmd := exec.CommandContext(ctx, r.bin, "-e", script)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()), err
}

func (r *execRunner) OpenApp(ctx context.Context, name string) error {
	return exec.CommandContext(ctx, "open", "-a", name).Run()
}

const (
	probeTimeout  = 5 * time.Second
	launchTimeout = 10 * time.Second
	launchSettle  = 3 * time.Second

	probeScript = `tell application "System Events" to (name of processes) contains "Messages"`

	accountScript = `
tell application "Messages"
	try
		return "Messages app reachable"
	on error errMsg
		return "ERROR: " & errMsg
	end try
end tell`
)

// Bridge sends messages through Messages.app. Sends are serialized; the app
// cannot be scripted concurrently.
type Bridge struct {
	runner      Runner
	log         zerolog.Logger
	sendTimeout time.Duration
	mu          sync.Mutex
}

func NewBridge(runner Runner, log zerolog.Logger, sendTimeout time.Duration) *Bridge {
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	return &Bridge{runner: runner, log: log, sendTimeout: sendTimeout}
}

// MessagesRunning probes whether Messages.app is up.
func (b *Bridge) MessagesRunning(ctx context.Context) (bool, string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	stdout, _, err := b.runner.Run(ctx, probeScript)
	if err != nil {
		return false, stdout, err
	}
	return strings.Contains(strings.ToLower(stdout), "true"), stdout, nil
}

// ensureRunning launches Messages.app when the probe says it is down and
// waits for it to settle.
func (b *Bridge) ensureRunning(ctx context.Context) {
	running, _, err := b.MessagesRunning(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("messages probe failed")
		return
	}
	if running {
		return
	}

	b.log.Info().Msg("launching Messages app")
	launchCtx, cancel := context.WithTimeout(ctx, launchTimeout)
	defer cancel()
	if err := b.runner.OpenApp(launchCtx, "Messages"); err != nil {
		b.log.Warn().Err(err).Msg("launching Messages failed")
		return
	}
	time.Sleep(launchSettle)
}

// Send delivers one message. It tries the default buddy first and falls back
// to the explicit SMS service; either path returning SUCCESS counts.
func (b *Bridge) Send(ctx context.Context, phoneNumber, message string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.log.Info().
		Str("phone", MaskPhone(phoneNumber)).
		Int("message_len", len(message)).
		Msg("sending message")

	b.ensureRunning(ctx)

	target := cleanDialString(phoneNumber)
	script := fmt.Sprintf(`
tell application "Messages"
	try
		activate
		delay 1
		set targetBuddy to buddy "%s"
		send "%s" to targetBuddy
		return "SUCCESS"
	on error errMsg number errNum
		try
			set targetService to service "SMS"
			set targetBuddy to buddy "%s" of targetService
			send "%s" to targetBuddy
			return "SUCCESS"
		on error errMsg2 number errNum2
			return "ERROR: " & errMsg & " (Code: " & errNum & ") / Alt: " & errMsg2 & " (Code: " & errNum2 & ")"
		end try
	end try
end tell`, escape(target), escape(message), escape(target), escape(message))

	sendCtx, cancel := context.WithTimeout(ctx, b.sendTimeout)
	defer cancel()

	stdout, stderr, err := b.runner.Run(sendCtx, script)
	if sendCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("message send timed out after %s", b.sendTimeout)
	}
	if err != nil {
		return "", fmt.Errorf("message send failed: %v: %s", err, stderr)
	}
	if stderr != "" {
		b.log.Warn().Str("stderr", stderr).Msg("applescript warning")
	}

	switch {
	case strings.Contains(stdout, "SUCCESS"):
		return "Message sent successfully.", nil
	case strings.Contains(stdout, "ERROR:"):
		return "", fmt.Errorf("applescript error: %s", stdout)
	default:
		return fmt.Sprintf("Send finished (response: %s)", stdout), nil
	}
}

// Diagnostics is the payload of the scripting self-test.
type Diagnostics struct {
	MessagesRunning bool   `json:"messages_running"`
	CheckOutput     string `json:"check_output"`
	AccountInfo     string `json:"account_info"`
	AccountError    string `json:"account_error,omitempty"`
}

// Test checks that Messages.app can be probed and scripted at all.
func (b *Bridge) Test(ctx context.Context) (*Diagnostics, error) {
	running, checkOut, err := b.MessagesRunning(ctx)
	if err != nil {
		return nil, err
	}

	accountCtx, cancel := context.WithTimeout(ctx, launchTimeout)
	defer cancel()
	accountOut, accountErr, err := b.runner.Run(accountCtx, accountScript)
	if err != nil {
		return nil, err
	}

	return &Diagnostics{
		MessagesRunning: running,
		CheckOutput:     checkOut,
		AccountInfo:     accountOut,
		AccountError:    accountErr,
	}, nil
}

// cleanDialString keeps digits and '+' for the buddy address.
func cleanDialString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if (s[i] >= '0' && s[i] <= '9') || s[i] == '+' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// escape makes a string safe inside AppleScript double quotes.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// MaskPhone hides the middle of a number for logs.
func MaskPhone(phone string) string {
	if len(phone) <= 7 {
		return "***"
	}
	return phone[:3] + "***" + phone[len(phone)-4:]
}
