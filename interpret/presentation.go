package interpret

import "sync"

// PresentationState is what the UI should currently show.
type PresentationState struct {
	PendingClarification string
	HasClarification     bool
	ActiveResult         ResultID
	HasResult            bool
}

// Presentation is shared by concurrently running response handlers.
// Whichever write lands last wins.
type Presentation struct {
	mu    sync.Mutex
	state PresentationState
}

func (p *Presentation) Clarify(text string) {
	p.mu.Lock()
	p.state.PendingClarification = text
	p.state.HasClarification = true
	p.mu.Unlock()
}

func (p *Presentation) SetResult(id ResultID) {
	p.mu.Lock()
	p.state.PendingClarification = ""
	p.state.HasClarification = false
	p.state.ActiveResult = id
	p.state.HasResult = true
	p.mu.Unlock()
}

func (p *Presentation) Dismiss() {
	p.mu.Lock()
	p.state.PendingClarification = ""
	p.state.HasClarification = false
	p.mu.Unlock()
}

func (p *Presentation) Reset() {
	p.mu.Lock()
	p.state = PresentationState{}
	p.mu.Unlock()
}

func (p *Presentation) Snapshot() PresentationState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
