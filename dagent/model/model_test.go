package model_test

import (
	"context"
	"testing"

	"github.com/package-register/deepagent-go/dagent/model"
	"github.com/package-register/deepagent-go/dagent/state"
)

// echoModel is a trivial Model used to exercise the Request/Response
// contract without a real provider.
type echoModel struct{}

func (echoModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, error) {
	ch := make(chan model.Response, 1)
	last := ""
	if len(req.Messages) > 0 {
		last = req.Messages[len(req.Messages)-1].Content
	}
	ch <- model.Response{
		Model:   "echo",
		Choices: []model.Choice{{Message: state.NewAssistantMessage("echo: " + last)}},
		Done:    true,
	}
	close(ch)
	return ch, nil
}

func TestModelContract(t *testing.T) {
	var m model.Model = echoModel{}
	req := model.Request{Messages: []state.Message{state.NewUserMessage("hello")}}

	ch, err := m.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	resp := <-ch
	if !resp.Done {
		t.Fatalf("expected Done response")
	}
	if got := resp.Choices[0].Message.Content; got != "echo: hello" {
		t.Fatalf("content = %q", got)
	}
}
