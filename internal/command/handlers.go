package command

import (
	"errors"
	"strings"

	"scarify.ai/internal/cfgfile"
	"scarify.ai/internal/protocol"
	"scarify.ai/internal/scarify"
)

const feedbackPrefix = "[Scarify]: "

func notAdded(name string) *Error {
	return errorf(protocol.ErrNotFound, "%s has not been added to Scarify", name)
}

// /scarify add <player_name>
func (d *Dispatcher) addPlayer(inv *invocation) (int, error) {
	name := inv.str(argPlayerName)
	switch err := d.reg.Add(name); {
	case errors.Is(err, scarify.ErrAlreadyAdded):
		return 0, errorf(protocol.ErrConflict, "%s has already been added to Scarify", name)
	case errors.Is(err, scarify.ErrEmptyName):
		return 0, errorf(protocol.ErrBadRequest, "Player name must not be empty")
	case err != nil:
		return 0, errorf(protocol.ErrInternal, "%v", err)
	}
	d.emitAudit(inv, scarify.ActionAdd, name, "")
	inv.src.SendFeedback(feedbackPrefix+"Made "+name+" scary!", true)
	return 1, nil
}

// /scarify remove <player_name>
func (d *Dispatcher) removePlayer(inv *invocation) (int, error) {
	name := inv.str(argPlayerName)
	if err := d.reg.Remove(name); err != nil {
		if errors.Is(err, scarify.ErrNotAdded) {
			return 0, notAdded(name)
		}
		return 0, errorf(protocol.ErrInternal, "%v", err)
	}
	d.emitAudit(inv, scarify.ActionRemove, name, "")
	inv.src.SendFeedback(feedbackPrefix+name+" is no longer scary", true)
	return 1, nil
}

// /scarify distanceOverride set <player_name> <block_distance>
func (d *Dispatcher) overrideDistance(inv *invocation) (int, error) {
	name := inv.str(argPlayerName)
	distance := inv.double(argBlockDistance)
	switch err := d.reg.SetDistanceOverride(name, distance); {
	case errors.Is(err, scarify.ErrInvalidDistance):
		return 0, errorf(protocol.ErrBadRequest, "Invalid distance amount. Distance must be greater than 0")
	case errors.Is(err, scarify.ErrEmptyName):
		return 0, errorf(protocol.ErrBadRequest, "Player name must not be empty")
	case err != nil:
		return 0, errorf(protocol.ErrInternal, "%v", err)
	}
	text := cfgfile.FormatDouble(distance)
	d.emitAudit(inv, scarify.ActionSetOverride, name, text)
	inv.src.SendFeedback(feedbackPrefix+name+" now has a distance override of "+text, true)
	return 1, nil
}

// /scarify distanceOverride reset <player_name>
func (d *Dispatcher) resetOverrideDistance(inv *invocation) (int, error) {
	name := inv.str(argPlayerName)
	switch err := d.reg.ResetDistanceOverride(name); {
	case errors.Is(err, scarify.ErrNotAdded):
		return 0, notAdded(name)
	case errors.Is(err, scarify.ErrNoOverride):
		return 0, errorf(protocol.ErrNotFound, "%s does not have a distance override set", name)
	case err != nil:
		return 0, errorf(protocol.ErrInternal, "%v", err)
	}
	d.emitAudit(inv, scarify.ActionResetOverride, name, "")
	inv.src.SendFeedback(feedbackPrefix+name+" no longer has a distance override", true)
	return 1, nil
}

// /scarify listAddedPlayers
func (d *Dispatcher) listPlayers(inv *invocation) (int, error) {
	// The empty notice looks at every section, the global one included, and
	// the list line is always sent after it.
	if d.reg.Store().Len() == 0 {
		inv.src.SendFeedback(feedbackPrefix+"No players have been added", false)
	}
	players := d.reg.Players()
	inv.src.SendFeedback(feedbackPrefix+"Added Players: ["+strings.Join(players, ", ")+"]", false)
	return 1, nil
}

// /scarify view <player_name>
func (d *Dispatcher) view(inv *invocation) (int, error) {
	name := inv.str(argPlayerName)
	sec, err := d.reg.View(name)
	if err != nil {
		return 0, notAdded(name)
	}
	parts := make([]string, 0, len(sec))
	for _, k := range sec.Keys() {
		parts = append(parts, k+"="+sec[k].Text())
	}
	inv.src.SendFeedback("["+name+"]: {"+strings.Join(parts, ", ")+"}", false)
	return 1, nil
}
