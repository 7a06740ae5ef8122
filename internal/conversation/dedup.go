package conversation

// holder records which conversation owns an identity key and how long it was
// when it claimed it.
type holder struct {
	id     int
	length int
}

// claim runs the identity check for a turn whose pre-redaction body is key,
// just added to c. The longer reconstruction of a thread wins; on equal
// length the conversation that claimed the key first is kept. A key whose
// holder is already gone is claimed afresh.
//
// Blank bodies carry no identity and always pass.
func (s *Store) claim(key string, c *Conversation) bool {
	if key == "" {
		return true
	}

	h, seen := s.identities[key]
	if seen && h.id != c.ID {
		if _, alive := s.conversations[h.id]; !alive {
			seen = false
		}
	}

	switch {
	case !seen, h.id == c.ID:
		s.identities[key] = holder{id: c.ID, length: len(c.Turns)}
		return true

	case len(c.Turns) > h.length:
		delete(s.conversations, h.id)
		s.evicted++
		s.identities[key] = holder{id: c.ID, length: len(c.Turns)}
		return true

	default:
		delete(s.conversations, c.ID)
		s.dropped++
		s.current = nil
		return false
	}
}
