package command

import (
	"log"
	"strings"
	"time"

	"scarify.ai/internal/protocol"
	"scarify.ai/internal/scarify"
	"scarify.ai/internal/suggest"
)

// Source is whoever issued the command.
type Source interface {
	Name() string
	PermissionLevel() int
	// PlayerNames lists the players currently online.
	PlayerNames() []string
	SendFeedback(msg string, broadcast bool)
}

const (
	argPlayerName    = "player_name"
	argBlockDistance = "block_distance"
)

type nodeKind uint8

const (
	kindLiteral nodeKind = iota
	kindString
	kindDouble
)

type handler func(d *Dispatcher, inv *invocation) (int, error)

type node struct {
	name     string
	kind     nodeKind
	children []*node
	exec     handler
	requires func(Source) bool
	suggest  *suggest.Provider
}

func literal(name string, children ...*node) *node {
	return &node{name: name, kind: kindLiteral, children: children}
}

func argument(name string, kind nodeKind, children ...*node) *node {
	return &node{name: name, kind: kind, children: children}
}

func (n *node) executes(h handler) *node {
	n.exec = h
	return n
}

func (n *node) suggests(p *suggest.Provider) *node {
	n.suggest = p
	return n
}

type invocation struct {
	src  Source
	args map[string]any
}

func (inv *invocation) str(name string) string {
	s, _ := inv.args[name].(string)
	return s
}

func (inv *invocation) double(name string) float64 {
	f, _ := inv.args[name].(float64)
	return f
}

type Options struct {
	// RequiredLevel is the permission level needed for /scarify.
	RequiredLevel int
	Audit         scarify.AuditSink
	Logger        *log.Logger
	Now           func() time.Time
}

type Dispatcher struct {
	reg   *scarify.Registry
	audit scarify.AuditSink
	log   *log.Logger
	now   func() time.Time
	root  *node
}

func New(reg *scarify.Registry, opts Options) *Dispatcher {
	d := &Dispatcher{
		reg:   reg,
		audit: opts.Audit,
		log:   opts.Logger,
		now:   opts.Now,
	}
	if d.log == nil {
		d.log = log.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	level := opts.RequiredLevel

	root := literal("scarify",
		literal("add",
			argument(argPlayerName, kindString).
				suggests(suggest.New().SearchInWorld().ExcludeKnown(reg)).
				executes((*Dispatcher).addPlayer),
		),
		literal("remove",
			argument(argPlayerName, kindString).
				suggests(suggest.New().SearchKnown(reg)).
				executes((*Dispatcher).removePlayer),
		),
		literal("distanceOverride",
			literal("set",
				argument(argPlayerName, kindString,
					argument(argBlockDistance, kindDouble).
						executes((*Dispatcher).overrideDistance),
				).suggests(suggest.New().SearchInWorld().SearchKnown(reg)),
			),
			literal("reset",
				argument(argPlayerName, kindString).
					suggests(suggest.New().SearchKnown(reg).CheckForKey(scarify.KeyDistanceOverride)).
					executes((*Dispatcher).resetOverrideDistance),
			),
		),
		literal("listAddedPlayers").executes((*Dispatcher).listPlayers),
		literal("view",
			argument(argPlayerName, kindString).
				suggests(suggest.New().SearchKnown(reg)).
				executes((*Dispatcher).view),
		),
	)
	root.requires = func(src Source) bool { return src.PermissionLevel() >= level }
	d.root = &node{children: []*node{root}}
	return d
}

// Execute parses and runs one command line. A leading '/' is optional. It
// returns the command's result (1 on success) or a *Error.
func (d *Dispatcher) Execute(src Source, line string) (int, error) {
	r := &reader{s: strings.TrimPrefix(strings.TrimSpace(line), "/")}
	inv := &invocation{src: src, args: map[string]any{}}
	cur := d.root
	for r.canRead() {
		if cur != d.root {
			if r.peek() != ' ' {
				return 0, errUnknown
			}
			r.pos++
		}
		next, err := cur.match(r, inv.args)
		if err != nil {
			return 0, err
		}
		if next == nil {
			return 0, errUnknown
		}
		if next.requires != nil && !next.requires(src) {
			return 0, errorf(protocol.ErrNoPermission, "You do not have permission to use this command")
		}
		cur = next
	}
	if cur.exec == nil {
		return 0, errUnknown
	}
	return cur.exec(d, inv)
}

// match consumes the next token as one of n's children. Literals are tried
// before arguments.
func (n *node) match(r *reader, args map[string]any) (*node, error) {
	for _, c := range n.children {
		if c.kind == kindLiteral && r.literal(c.name) {
			return c, nil
		}
	}
	for _, c := range n.children {
		if c.kind == kindLiteral {
			continue
		}
		start := r.pos
		var (
			v   any
			err error
		)
		switch c.kind {
		case kindString:
			quoted := r.canRead() && isQuote(r.peek())
			var s string
			s, err = r.readString()
			if err == nil && s == "" && !quoted {
				err = syntaxErrorf("Expected string")
			}
			v = s
		case kindDouble:
			v, err = r.readDouble()
		}
		if err != nil {
			r.pos = start
			return nil, err
		}
		if r.canRead() && r.peek() != ' ' {
			r.pos = start
			return nil, syntaxErrorf("Expected whitespace to end one argument, but found trailing data")
		}
		args[c.name] = v
		return c, nil
	}
	return nil, nil
}

// Complete returns candidates for the last (possibly partial) token of line.
func (d *Dispatcher) Complete(src Source, line string) []string {
	r := &reader{s: strings.TrimPrefix(strings.TrimLeft(line, " "), "/")}
	args := map[string]any{}
	cur := d.root
	for {
		if cur != d.root {
			if !r.canRead() || r.peek() != ' ' {
				return nil
			}
			r.pos++
		}
		partial := r.rest()
		if !strings.Contains(partial, " ") {
			return d.suggestions(cur, src, partial)
		}
		next, err := cur.match(r, args)
		if err != nil || next == nil {
			return nil
		}
		if next.requires != nil && !next.requires(src) {
			return nil
		}
		cur = next
	}
}

func (d *Dispatcher) suggestions(n *node, src Source, partial string) []string {
	lower := strings.ToLower(partial)
	out := []string{}
	for _, c := range n.children {
		if c.requires != nil && !c.requires(src) {
			continue
		}
		switch {
		case c.kind == kindLiteral:
			if strings.HasPrefix(strings.ToLower(c.name), lower) {
				out = append(out, c.name)
			}
		case c.suggest != nil:
			out = append(out, c.suggest.Suggest(src.PlayerNames(), strings.TrimLeft(partial, `"'`))...)
		}
	}
	return out
}

func (d *Dispatcher) emitAudit(inv *invocation, action, player, value string) {
	if d.audit == nil {
		return
	}
	err := d.audit.WriteAudit(scarify.AuditEntry{
		At:     d.now().UTC(),
		Actor:  inv.src.Name(),
		Action: action,
		Player: player,
		Value:  value,
	})
	if err != nil {
		d.log.Printf("command: audit %s %s: %v", action, player, err)
	}
}
