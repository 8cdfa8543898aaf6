package services

import "log"

type runState string

const (
	stateStarted       runState = "Started"
	stateDownloading   runState = "Downloading"
	stateInspecting    runState = "Inspecting"
	stateIntrospecting runState = "Introspecting"
	statePublishing    runState = "Publishing"
	statePersisting    runState = "Persisting"
	stateDone          runState = "Done"
)

// run tracks one workflow execution: its state, its side effects and the
// warnings collected along the way.
type run struct {
	op       string
	ref      string
	state    runState
	ledger   ledger
	warnings []string
}

func newRun(op, ref string) *run {
	return &run{op: op, ref: ref, state: stateStarted}
}

func (r *run) String() string { return r.op + " " + r.ref }

func (r *run) enter(next runState) {
	log.Printf("[ingest] %s: %s -> %s", r, r.state, next)
	r.state = next
}

func (r *run) fail(err error) error {
	log.Printf("[ingest] %s: %s -> Failed(%s): %v", r, r.state, KindOf(err), err)
	r.state = runState("Failed(" + string(KindOf(err)) + ")")
	return err
}
