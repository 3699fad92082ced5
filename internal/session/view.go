package session

// SubmissionView is the renderable projection of one submission.
type SubmissionView struct {
	ID      string   `json:"id"`
	ShareID string   `json:"shareId"` // server id when assigned, local id otherwise
	Prompt  string   `json:"prompt"`
	Input   string   `json:"input"`  // uploaded scribble URL
	Output  string   `json:"output"` // latest frame, "" while pending
	Frames  []string `json:"frames"`
	Status  string   `json:"status"`
	Reason  string   `json:"reason,omitempty"`
}

// View is everything the presentation layer needs, derived purely from
// session state.
type View struct {
	Loading bool             `json:"loading"`
	Results []SubmissionView `json:"results"`
}

// BuildView projects the session into renderable data: results newest
// first, plus the global loading flag (attempts that have not yet
// produced a first frame or terminal outcome).
func BuildView(s *Session) View {
	store := s.Store()
	subs := store.ListForDisplay()

	v := View{
		Loading: s.Attempted() > store.Progressed(),
		Results: make([]SubmissionView, 0, len(subs)),
	}
	for i := range subs {
		sub := &subs[i]
		shareID := sub.ID
		if sub.ServerID != "" {
			shareID = sub.ServerID
		}
		frames := make([]string, len(sub.Frames))
		for j, f := range sub.Frames {
			frames[j] = string(f)
		}
		out := ""
		if latest, ok := sub.Latest(); ok {
			out = string(latest)
		}
		v.Results = append(v.Results, SubmissionView{
			ID:      sub.ID,
			ShareID: shareID,
			Prompt:  sub.Prompt,
			Input:   string(sub.Input),
			Output:  out,
			Frames:  frames,
			Status:  sub.Status.String(),
			Reason:  sub.Reason,
		})
	}
	return v
}
