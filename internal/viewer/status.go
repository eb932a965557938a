package viewer

// Status is a snapshot of viewer state, safe to read from any goroutine.
type Status struct {
	Model        string `json:"model"`
	ModelLoaded  bool   `json:"model_loaded"`
	TargetFound  bool   `json:"target_found"`
	Texture      string `json:"texture"`
	TextureToken uint64 `json:"texture_token"`
	LatestToken  uint64 `json:"latest_token"`
	PendingSwaps int    `json:"pending_swaps"`
	SwapPolicy   string `json:"swap_policy"`
	Frames       uint64 `json:"frames"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// Status returns the latest snapshot.
func (v *Viewer) Status() Status {
	s := *v.status.Load()
	s.Frames = v.frames.Load()
	return s
}

// publishStatus records the current state. Frame goroutine only.
func (v *Viewer) publishStatus() {
	v.status.Store(&Status{
		Model:        v.modelPath,
		ModelLoaded:  v.model != nil,
		TargetFound:  v.target != nil,
		Texture:      v.swaps.path,
		TextureToken: v.swaps.appliedToken,
		LatestToken:  v.swaps.issued,
		PendingSwaps: v.swaps.pending,
		SwapPolicy:   v.swaps.policy,
		Width:        v.width,
		Height:       v.height,
	})
}
