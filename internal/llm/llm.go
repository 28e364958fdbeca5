// Package llm runs generation prompts through a local agent CLI and exposes
// the streamed response as a sequence of events.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Options control a single agent invocation.
type Options struct {
	SystemPrompt   string
	MaxTurns       int
	AllowedTools   []string
	PermissionMode string
}

// Block is one content block inside an assistant event.
type Block struct {
	Type string
	Text string
}

// Event is one decoded line of the agent's stream-json output.
type Event struct {
	Type    string
	Blocks  []Block
	Result  string
	IsError bool
}

// Stream yields events until io.EOF. Close must be called exactly once.
type Stream interface {
	Next() (*Event, error)
	Close() error
}

// Client runs a prompt and returns the response stream.
type Client interface {
	Query(ctx context.Context, prompt string, opts Options) (Stream, error)
}

// CLIClient shells out to an agent binary in print mode with stream-json
// output, one JSON event per stdout line.
type CLIClient struct {
	Bin string
}

func NewCLIClient(bin string) *CLIClient {
	if bin == "" {
		bin = "claude"
	}
	return &CLIClient{Bin: bin}
}

func (c *CLIClient) Query(ctx context.Context, prompt string, opts Options) (Stream, error) {
	args := []string{"-p", "--verbose", "--output-format", "stream-json"}
	if opts.SystemPrompt != "" {
		args = append(args, "--system-prompt", opts.SystemPrompt)
	}
	if opts.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(opts.MaxTurns))
	}
	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowed-tools", strings.Join(opts.AllowedTools, ","))
	}
	if opts.PermissionMode != "" {
		args = append(args, "--permission-mode", opts.PermissionMode)
	}

	cmd := exec.CommandContext(ctx, c.Bin, args...)
	cmd.Stdin = strings.NewReader(prompt)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open agent stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start agent %q: %w", c.Bin, err)
	}

	s := newReaderStream(stdout)
	s.cmd = cmd
	s.stderr = &stderr
	return s, nil
}

// readerStream decodes stream-json lines from r. Lines that are not valid
// JSON events are skipped.
type readerStream struct {
	r       io.ReadCloser
	scanner *bufio.Scanner
	cmd     *exec.Cmd
	stderr  *bytes.Buffer
	closed  bool
}

func newReaderStream(r io.ReadCloser) *readerStream {
	sc := bufio.NewScanner(r)
	// Single events can carry whole documents.
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	return &readerStream{r: r, scanner: sc}
}

type wireEvent struct {
	Type    string `json:"type"`
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Result  string `json:"result"`
	IsError bool   `json:"is_error"`
}

func (s *readerStream) Next() (*Event, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var we wireEvent
		if err := json.Unmarshal(line, &we); err != nil {
			continue
		}
		ev := &Event{Type: we.Type, Result: we.Result, IsError: we.IsError}
		for _, c := range we.Message.Content {
			ev.Blocks = append(ev.Blocks, Block{Type: c.Type, Text: c.Text})
		}
		return ev, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read agent stream: %w", err)
	}
	return nil, io.EOF
}

func (s *readerStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.r.Close()
	if s.cmd != nil {
		if err := s.cmd.Wait(); err != nil {
			msg := strings.TrimSpace(s.stderr.String())
			if msg != "" {
				return fmt.Errorf("agent exited: %w: %s", err, msg)
			}
			return fmt.Errorf("agent exited: %w", err)
		}
	}
	return nil
}

// CollectText drains the stream and returns the full response text. The
// final result event wins when present; otherwise assistant text blocks are
// concatenated in order.
func CollectText(s Stream) (string, error) {
	var b strings.Builder
	for {
		ev, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch ev.Type {
		case "assistant":
			for _, blk := range ev.Blocks {
				if blk.Type == "text" {
					b.WriteString(blk.Text)
				}
			}
		case "result":
			if ev.IsError {
				return "", fmt.Errorf("agent reported error: %s", ev.Result)
			}
			if ev.Result != "" {
				return ev.Result, nil
			}
		}
	}
	return b.String(), nil
}
