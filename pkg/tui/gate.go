package tui

import (
	"github.com/stepflow-ai/stepflow/pkg/runtime"
	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// gateRequest carries a pending review from the engine goroutine to the
// model, plus the channel the verdict travels back on.
type gateRequest struct {
	step   *schema.Step
	record *runtime.StepRecord
	reply  chan *runtime.GateResponse
}

// uiGate implements runtime.Gate by handing each review to the Bubble Tea
// model. Review blocks the engine goroutine until the operator decides.
type uiGate struct {
	requests chan gateRequest
}

func newUIGate() *uiGate {
	return &uiGate{requests: make(chan gateRequest)}
}

func (g *uiGate) Review(step *schema.Step, record *runtime.StepRecord) (*runtime.GateResponse, error) {
	reply := make(chan *runtime.GateResponse, 1)
	g.requests <- gateRequest{step: step, record: record, reply: reply}
	return <-reply, nil
}
