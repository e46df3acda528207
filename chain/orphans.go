// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chain

import (
	"github.com/dblokhin/epic-go/consensus"
)

// maxOrphans bounds memory use from peers feeding blocks whose parents
// never arrive.
const maxOrphans = 256

// orphanPool holds blocks received before their parent, indexed by the
// parent hash they're waiting on, so accepting a header can cheaply pull
// every child ready to be retried.
type orphanPool struct {
	byParent map[consensus.Hash][]*consensus.Block
	count    int
}

func newOrphanPool() *orphanPool {
	return &orphanPool{byParent: make(map[consensus.Hash][]*consensus.Block)}
}

// add stages block under its declared parent hash. When the pool is full
// it first drops one whole parent bucket, whichever the map iteration
// yields first; which bucket that is, is not defined.
func (o *orphanPool) add(block *consensus.Block) {
	if o.count >= maxOrphans {
		for k := range o.byParent {
			o.count -= len(o.byParent[k])
			delete(o.byParent, k)
			break
		}
	}
	parent := block.Header.PrevHash
	o.byParent[parent] = append(o.byParent[parent], block)
	o.count++
}

// take removes and returns every orphan waiting on parentHash.
func (o *orphanPool) take(parentHash consensus.Hash) []*consensus.Block {
	blocks := o.byParent[parentHash]
	delete(o.byParent, parentHash)
	o.count -= len(blocks)
	return blocks
}
