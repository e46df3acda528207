// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package p2p

import (
	"time"

	"github.com/dblokhin/epic-go/txpool"
	"github.com/sirupsen/logrus"
)

// dandelionEmbargo is how long a stem transaction waits for the next hop
// to fluff it before we give up and fluff it ourselves.
const dandelionEmbargo = 30 * time.Second

func nowUnix() time.Time { return time.Now() }

// runDandelion rolls the stempool's epoch on a fixed tick and fluffs any
// stem entry whose embargo timer has expired, broadcasting it as an
// ordinary transaction instead of relaying it further.
func (s *Syncer) runDandelion(stem *txpool.Stempool) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			stem.RollEpoch(nowUnix())

			expired := stem.Expired(nowUnix())
			for _, tx := range expired {
				logrus.Debug("p2p: dandelion embargo expired, fluffing transaction")
				s.peers.Broadcast(&TransactionMsg{Tx: tx}, ^uint64(0)) // no height filter
			}
		}
	}
}
