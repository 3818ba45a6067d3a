package models

// Stats is a derived view over entity state. It is never stored; callers
// recompute it whenever they need it.
//
// PlusOneCount counts plus-one records on the list; PlusOneAllowedCount
// counts guests invited with a plus-one, named or not.
type Stats struct {
	TotalEntities       int `json:"total_entities"`
	GuestCount          int `json:"guest_count"`
	PlusOneCount        int `json:"plus_one_count"`
	PlusOneAllowedCount int `json:"plus_one_allowed_count"`
	CheckedInCount      int `json:"checked_in_count"`
	OnlineRSVPCount     int `json:"online_rsvp_count"`
	SouvenirGivenCount  int `json:"souvenir_given_count"`
	SouvenirRemaining   int `json:"souvenir_remaining"`
}

// ComputeStats sums entity state. The result depends only on the input set.
func ComputeStats(entities []*Entity) Stats {
	var s Stats
	for _, e := range entities {
		if e == nil {
			continue
		}
		s.TotalEntities++
		switch e.Kind {
		case EntityKindGuest:
			s.GuestCount++
			if e.PlusOneAllowed {
				s.PlusOneAllowedCount++
			}
		case EntityKindPlusOne:
			s.PlusOneCount++
		}
		if e.CheckedIn {
			s.CheckedInCount++
		}
		if e.RSVPSource == RSVPSourceOnline {
			s.OnlineRSVPCount++
		}
		if e.SouvenirReceived {
			s.SouvenirGivenCount++
		}
	}
	s.SouvenirRemaining = s.TotalEntities - s.SouvenirGivenCount
	return s
}
