package ws

import (
	"encoding/json"
	"fmt"

	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/internal/usecase"
	"github.com/mmuslimabdulj/goat-rooms/internal/usecase/room"
)

// playerKeyColor is where a participant's neon color lives in its entry
const playerKeyColor = "color"

// handle routes one inbound frame to the session
func (c *Client) handle(msg domain.Message) {
	switch msg.Type {
	case domain.MessageTypeJoin:
		var p domain.JoinPayload
		if !c.decode(msg, &p) {
			return
		}
		c.join(SanitizeDisplayName(p.Name))

	case domain.MessageTypeGame:
		var p domain.FieldPayload
		if !c.decode(msg, &p) || !c.checkKey(p.Key, IsValidFieldKey) {
			return
		}
		room.MutateGameField(c.session, p.Key, setRaw(p.Value), c.reportError)

	case domain.MessageTypeMy:
		var p domain.FieldPayload
		if !c.decode(msg, &p) || !c.checkKey(p.Key, IsValidPlayerKey) {
			return
		}
		if err := checkPlayerValue(p); err != nil {
			c.reportError(domain.Wrap(domain.CodeInvalidInput, string(msg.Type), err))
			return
		}
		room.MutateSelfField(c.session, p.Key, setRaw(p.Value), c.reportError)

	case domain.MessageTypePublic:
		var p domain.FieldPayload
		if !c.decode(msg, &p) || !c.checkKey(p.Key, IsValidFieldKey) {
			return
		}
		if err := room.MutatePublicDataField(c.session, p.Key, setRaw(p.Value), c.reportError); err != nil {
			c.reportError(err)
		}

	case domain.MessageTypeStart:
		if tools, ok := c.ownerTools(); ok {
			tools.StartGame(c.reportError)
		}

	case domain.MessageTypeOpen:
		var p domain.OpenPayload
		if !c.decode(msg, &p) {
			return
		}
		if tools, ok := c.ownerTools(); ok {
			tools.SetOpen(p.Open, c.reportError)
		}

	case domain.MessageTypeAdmit:
		var p domain.TargetPayload
		if !c.decode(msg, &p) {
			return
		}
		if tools, ok := c.ownerTools(); ok {
			tools.Admit(p.ID, c.reportError)
		}

	case domain.MessageTypeTransfer:
		var p domain.TargetPayload
		if !c.decode(msg, &p) {
			return
		}
		if tools, ok := c.ownerTools(); ok {
			tools.TransferOwnership(p.ID, c.reportError)
		}

	default:
		c.log.Debug().Str("type", string(msg.Type)).Msg("unknown frame ignored")
	}
}

// join requests admission and, once the entry is written, paints it
func (c *Client) join(name string) {
	outcome := c.session.RequestJoin(name, func(err error) {
		if err != nil {
			c.reportError(err)
			return
		}
		color := usecase.ColorFor(name)
		room.MutateSelfField(c.session, playerKeyColor, func(v *string) { *v = color }, c.reportError)
	})
	c.sendFrame(domain.MessageTypeJoinResult, domain.JoinResultPayload{
		Outcome: string(outcome),
		Name:    name,
	})
}

func (c *Client) ownerTools() (*room.OwnerTools[domain.Fields, domain.PlayerData, domain.Fields], bool) {
	tools, ok := c.session.OwnerTools()
	if !ok {
		c.reportError(domain.ErrNotOwner)
	}
	return tools, ok
}

func (c *Client) decode(msg domain.Message, v any) bool {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		c.reportError(domain.Wrap(domain.CodeInvalidInput, string(msg.Type), err))
		return false
	}
	return true
}

func (c *Client) checkKey(key string, valid func(string) bool) bool {
	if !valid(key) {
		c.reportError(domain.New(domain.CodeInvalidInput, "invalid field key"))
		return false
	}
	return true
}

// checkPlayerValue rejects values that would not decode into PlayerData
// and colors outside the palette
func checkPlayerValue(p domain.FieldPayload) error {
	raw, err := json.Marshal(map[string]json.RawMessage{p.Key: p.Value})
	if err != nil {
		return err
	}
	var data domain.PlayerData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	if p.Key == playerKeyColor && !usecase.IsPaletteColor(data.Color) {
		return fmt.Errorf("color %q is not in the palette", data.Color)
	}
	return nil
}

// setRaw replaces a field with value; a missing or null value deletes it
func setRaw(value json.RawMessage) func(*json.RawMessage) {
	return func(v *json.RawMessage) {
		*v = value
	}
}

// BuildViewPayload renders a projection for the browser. Waiting players
// are listed only to the owner.
func BuildViewPayload(r *Room, v View, suggested string) domain.ViewPayload {
	p := domain.ViewPayload{
		RoomCode: r.Code,
		RoomName: r.Name,
		Identity: v.Identity,
		Joined:   v.Joined,
		IsOwner:  v.IsOwner,
		Owner:    v.Owner,
		IsOpen:   v.IsOpen,
		Game:     v.Game,
		Players:  make([]domain.PlayerView, 0, len(v.Players)),
	}
	if p.Game == nil {
		p.Game = domain.Fields{}
	}
	if v.PublicData != nil {
		p.PublicData = *v.PublicData
	}

	for _, e := range v.Players {
		row := playerView(e)
		if e.ID == v.Identity {
			me := row
			p.Me = &me
		}
		if e.Participant.Status.IsWaiting {
			if v.IsOwner {
				p.Waiting = append(p.Waiting, row)
			}
			continue
		}
		p.Players = append(p.Players, row)
	}

	if !v.Joined {
		p.SuggestedName = suggested
	}
	return p
}

func playerView(e domain.Entry[domain.PlayerData]) domain.PlayerView {
	return domain.PlayerView{
		ID:     e.ID,
		Name:   e.Participant.Name,
		Color:  e.Participant.Data.Color,
		Score:  e.Participant.Data.Score,
		Status: e.Participant.Status,
	}
}
