package engine

import "fmt"

type Channel string

const (
	ChannelRoom  Channel = "room"
	ChannelMafia Channel = "mafia"
	ChannelDead  Channel = "dead"
)

func ParseChannel(s string) (Channel, bool) {
	switch Channel(lower(s)) {
	case ChannelRoom, "":
		return ChannelRoom, true
	case ChannelMafia:
		return ChannelMafia, true
	case ChannelDead:
		return ChannelDead, true
	default:
		return "", false
	}
}

// ChatRecipients decides who hears a message. The mafia channel is private
// only at night; at other times it falls back to the whole room.
func (s *Session) ChatRecipients(senderID string, ch Channel) ([]string, Refusal, error) {
	sender, err := s.lookup(senderID)
	if err != nil {
		return nil, RefusalNone, err
	}

	switch ch {
	case ChannelRoom:
		if !sender.Alive {
			return nil, RefusalDeadSpeaker, nil
		}
		return s.allIDs(), RefusalNone, nil

	case ChannelMafia:
		if sender.Role != RoleMafia {
			return nil, RefusalNotYourRole, nil
		}
		if !sender.Alive {
			return nil, RefusalDeadSpeaker, nil
		}
		if s.Phase != PhaseNight {
			return s.allIDs(), RefusalNone, nil
		}
		return s.IDsWithRole(RoleMafia), RefusalNone, nil

	case ChannelDead:
		if sender.Alive {
			return nil, RefusalAliveSpeaker, nil
		}
		return s.deadIDs(), RefusalNone, nil

	default:
		return nil, RefusalNone, fmt.Errorf("%w: %q", ErrInvalidChannel, ch)
	}
}
