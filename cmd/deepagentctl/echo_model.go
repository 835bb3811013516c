package main

import (
	"context"

	"github.com/package-register/deepagent-go/dagent/model"
	"github.com/package-register/deepagent-go/dagent/state"
)

// echoModel is a stand-in for a real provider client: it never calls a
// tool, it just echoes the latest user message back as the assistant's
// reply. It exists only so this binary can demonstrate one full run
// through the assembled stack without depending on a concrete LLM SDK,
// which is out of scope for this module (§1, §9).
type echoModel struct{}

func newEchoModel() *echoModel { return &echoModel{} }

func (m *echoModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, error) {
	reply := "(no user message)"
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == state.RoleUser {
			reply = "you said: " + req.Messages[i].Content
			break
		}
	}

	ch := make(chan model.Response, 1)
	ch <- model.Response{
		Choices: []model.Choice{{Message: state.NewAssistantMessage(reply)}},
		Done:    true,
	}
	close(ch)
	return ch, nil
}
