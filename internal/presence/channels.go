package presence

import "sync"

// Channels is channel_id → set<player_name> membership.
type Channels struct {
	mu      sync.Mutex
	members map[[16]byte]map[string]struct{}
}

// NewChannels returns an empty channel membership cache.
func NewChannels() *Channels {
	return &Channels{members: make(map[[16]byte]map[string]struct{})}
}

// Join adds playerName to channelID, creating the channel if needed.
func (c *Channels) Join(channelID [16]byte, playerName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.members[channelID]
	if !ok {
		set = make(map[string]struct{})
		c.members[channelID] = set
	}
	set[playerName] = struct{}{}
}

// Leave removes playerName from channelID. An emptied channel is dropped
// entirely.
func (c *Channels) Leave(channelID [16]byte, playerName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.members[channelID]
	if !ok {
		return
	}
	delete(set, playerName)
	if len(set) == 0 {
		delete(c.members, channelID)
	}
}

// Delete removes a channel outright, regardless of membership.
func (c *Channels) Delete(channelID [16]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.members, channelID)
}

// DisconnectPlayer removes playerName from every channel it belongs to,
// dropping any channel left empty as a result.
func (c *Channels) DisconnectPlayer(playerName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, set := range c.members {
		if _, ok := set[playerName]; !ok {
			continue
		}
		delete(set, playerName)
		if len(set) == 0 {
			delete(c.members, id)
		}
	}
}

// Members returns a snapshot of channelID's current membership.
func (c *Channels) Members(channelID [16]byte) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.members[channelID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	return out
}

// Shares reports whether a and b are both members of at least one common
// channel.
func (c *Channels) Shares(a, b string) bool {
	if a == b {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, set := range c.members {
		_, inA := set[a]
		_, inB := set[b]
		if inA && inB {
			return true
		}
	}
	return false
}

// ChannelCount reports how many non-empty channels exist, for tests and
// diagnostics.
func (c *Channels) ChannelCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.members)
}
