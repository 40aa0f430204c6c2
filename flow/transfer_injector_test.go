package flow

import (
	"testing"

	"github.com/studymesh/studymesh/model"
)

func TestTransferToolInjector_Injection(t *testing.T) {
	agent := &mockFlowAgent{
		name:      "root",
		transfer:  true,
		subAgents: []FlowAgent{&mockFlowAgent{name: "child"}},
	}
	inj := NewTransferToolInjector()
	runCtx := newTestRunContext(t)

	req := &model.Request{}
	if err := inj.ProcessRequest(runCtx, req, agent); err != nil {
		t.Fatalf("inject error: %v", err)
	}

	found := false
	for _, td := range req.Tools {
		if td.Function.Name == "transfer_to_agent" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected transfer_to_agent tool definition injected")
	}

	// second call should not duplicate
	_ = inj.ProcessRequest(runCtx, req, agent)
	count := 0
	for _, td := range req.Tools {
		if td.Function.Name == "transfer_to_agent" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected single definition, got %d", count)
	}
}

func TestTransferToolInjector_SkipsWhenNotApplicable(t *testing.T) {
	inj := NewTransferToolInjector()
	runCtx := newTestRunContext(t)

	// Transfer disabled.
	req := &model.Request{}
	agent := &mockFlowAgent{name: "root", subAgents: []FlowAgent{&mockFlowAgent{name: "child"}}}
	if err := inj.ProcessRequest(runCtx, req, agent); err != nil {
		t.Fatalf("inject error: %v", err)
	}
	if len(req.Tools) != 0 {
		t.Fatalf("expected no injection with transfer disabled, got %d tools", len(req.Tools))
	}

	// No sub-agents.
	req = &model.Request{}
	agent = &mockFlowAgent{name: "root", transfer: true}
	if err := inj.ProcessRequest(runCtx, req, agent); err != nil {
		t.Fatalf("inject error: %v", err)
	}
	if len(req.Tools) != 0 {
		t.Fatalf("expected no injection without sub-agents, got %d tools", len(req.Tools))
	}
}
