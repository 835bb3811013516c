// Command deepagentctl is a minimal smoke-driver for one agent run: it
// assembles a Harness with a scripted stand-in model (the real provider
// client is out of scope, §1/§9) and drives a single user prompt through
// the full middleware stack, printing the final assistant message.
//
// Grounded on other_examples' pureclaw cmd/pureclaw/run_subagent.go.go:
// flag-driven entry point, signal.NotifyContext plus a context timeout,
// and structured startup/shutdown logging around the one blocking call.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/package-register/deepagent-go/dagent/agent"
	"github.com/package-register/deepagent-go/dagent/logger"
	"github.com/package-register/deepagent-go/dagent/state"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("deepagentctl", flag.ContinueOnError)
	prompt := fs.String("prompt", "say hello and finish", "user message for the single run")
	systemPrompt := fs.String("system", "you are a helpful assistant", "base system prompt")
	logLevel := fs.String("log-level", "info", "debug, info, warn, or error")
	timeout := fs.Duration("timeout", 30*time.Second, "run deadline")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger.Init(*logLevel)
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	h, err := agent.New(agent.Options{
		Model:        newEchoModel(),
		SystemPrompt: *systemPrompt,
	})
	if err != nil {
		log.Error("failed to assemble harness", "component", "cmd", "operation", "assemble", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	s := h.NewState()
	s.AppendMessage(state.NewUserMessage(*prompt))

	log.Info("starting run", "component", "cmd", "operation", "run", "thread_id", s.ThreadID)
	if err := h.Run(ctx, s); err != nil {
		log.Error("run failed", "component", "cmd", "operation", "run", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if s.PendingInterrupt != nil {
		log.Warn("run suspended awaiting a human decision",
			"component", "cmd", "operation", "run",
			"tool", s.PendingInterrupt.ToolName, "call_id", s.PendingInterrupt.ToolCallID)
		fmt.Printf("suspended: tool %q call %q awaiting a decision\n", s.PendingInterrupt.ToolName, s.PendingInterrupt.ToolCallID)
		return 0
	}

	final, _ := s.LastAssistantMessage()
	log.Info("run finished", "component", "cmd", "operation", "run")
	fmt.Println(final.Content)
	return 0
}
