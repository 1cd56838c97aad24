package console

// source adapts one Exec or Complete request to command.Source and collects
// the feedback it produces.
type source struct {
	op     Operator
	online []string
	lines  []Line
}

func (s *source) Name() string          { return s.op.Name }
func (s *source) PermissionLevel() int  { return s.op.Level }
func (s *source) PlayerNames() []string { return s.online }

func (s *source) SendFeedback(msg string, broadcast bool) {
	s.lines = append(s.lines, Line{Text: msg, Broadcast: broadcast})
}
