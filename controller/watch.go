package controller

import (
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"

	"github.com/opd-ai/peerlink/address"
)

// WatchRegisteredUsers starts polling the rendezvous server for the users
// set with SetRemoteUserIDs. online runs when a user becomes reachable and
// offline when a tracked user goes away. Only the first call has an effect.
func (c *Central) WatchRegisteredUsers(online, offline UserHook) {
	c.pollOnce.Do(func() {
		c.wg.Add(1)
		go c.pollLoop(online, offline)

		logrus.WithFields(logrus.Fields{
			"function": "WatchRegisteredUsers",
			"interval": c.pollInterval.String(),
		}).Info("Watching registered users")
	})
}

// TrackedUsers returns the ids of watched users currently online, sorted.
func (c *Central) TrackedUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := maps.Keys(c.tracked)
	slices.Sort(ids)
	return ids
}

func (c *Central) pollLoop(online, offline UserHook) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		c.pollRegisteredUsers(online, offline)
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Central) pollRegisteredUsers(online, offline UserHook) {
	c.mu.Lock()
	ids := append([]string(nil), c.remoteUserIDs...)
	c.mu.Unlock()

	var infos []address.NetworkInfo
	if len(ids) > 0 {
		var ok bool
		infos, ok = c.rendezvous.GetInfos(ids)
		if !ok {
			logrus.WithFields(logrus.Fields{
				"function": "pollRegisteredUsers",
				"users":    len(ids),
			}).Debug("Rendezvous lookup failed")
			return
		}
	}

	current := make(map[string]address.NetworkInfo, len(infos))
	for _, info := range infos {
		if info.IsOnline() {
			current[info.UserID] = info
		}
	}

	var appeared, vanished []string
	c.mu.Lock()
	for _, id := range maps.Keys(c.tracked) {
		old := c.tracked[id]
		info, still := current[id]
		oldPublic, _ := old.PublicEndpoint()
		if !still {
			delete(c.tracked, id)
			c.transport.RemoveKeepAliveEndpoint(oldPublic)
			vanished = append(vanished, id)
			continue
		}
		if public, _ := info.PublicEndpoint(); public != oldPublic {
			c.transport.RemoveKeepAliveEndpoint(oldPublic)
			c.transport.AddKeepAliveEndpoint(public)
		}
		c.tracked[id] = info
	}
	for id, info := range current {
		if _, known := c.tracked[id]; known {
			continue
		}
		c.tracked[id] = info
		public, _ := info.PublicEndpoint()
		c.transport.AddKeepAliveEndpoint(public)
		appeared = append(appeared, id)
	}
	c.mu.Unlock()

	slices.Sort(appeared)
	slices.Sort(vanished)
	for _, id := range appeared {
		logrus.WithFields(logrus.Fields{
			"function": "pollRegisteredUsers",
			"user_id":  id,
		}).Info("User online")
		if online != nil {
			online(id)
		}
	}
	for _, id := range vanished {
		logrus.WithFields(logrus.Fields{
			"function": "pollRegisteredUsers",
			"user_id":  id,
		}).Info("User offline")
		if offline != nil {
			offline(id)
		}
	}
}
