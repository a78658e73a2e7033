// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cbg

import "github.com/buriko-arc/buriko/internal/bitio"

const invalidNode = ^uint32(0)

// huffNode is one node of a weight-ordered Huffman tree built by
// repeatedly pairing the two smallest active weights. Leaf nodes carry
// their own index as both children, so descending to a leaf and
// reading off its symbol are the same operation.
type huffNode struct {
	hasChildren bool
	left, right uint32
}

// buildWeightedTree builds a pairing tree over weights (a zero weight
// means the symbol is absent) and returns the full node array, leaves
// first at indices [0,len(weights)) followed by internal nodes, and
// the root index. Ties are broken by node index, which always settles
// the lower-weight (or lower-index, on an exact tie) candidate into a
// node's left child.
func buildWeightedTree(weights []uint32) ([]huffNode, uint32) {
	n := len(weights)
	size := 2*n - 1
	if size < n {
		size = n
	}
	weight := make([]uint32, size)
	active := make([]bool, size)
	nodes := make([]huffNode, size)

	var sum uint32
	for i, w := range weights {
		weight[i] = w
		active[i] = w > 0
		nodes[i] = huffNode{left: uint32(i), right: uint32(i)}
		sum += w
	}

	cnodes := uint32(n)
	for {
		var pair [2]uint32
		pair[0], pair[1] = invalidNode, invalidNode
		for m := 0; m < 2; m++ {
			min := invalidNode
			for i := uint32(0); i < cnodes; i++ {
				if active[i] && weight[i] < min {
					pair[m] = i
					min = weight[i]
				}
			}
			if pair[m] != invalidNode {
				active[pair[m]] = false
			}
		}

		var w uint32
		if pair[1] != invalidNode {
			w = weight[pair[1]]
		}
		w += weight[pair[0]]

		weight[cnodes] = w
		active[cnodes] = true
		nodes[cnodes] = huffNode{hasChildren: true, left: pair[0], right: pair[1]}
		cnodes++
		if w == sum {
			break
		}
	}
	return nodes[:cnodes], cnodes - 1
}

// decodeSymbol walks nodes from root, consuming one bit per level
// MSB-first, until it lands on a leaf, and returns the leaf's index.
func decodeSymbol(nodes []huffNode, root uint32, br *bitio.MSBReader) (uint32, error) {
	cur := root
	for cur < uint32(len(nodes)) && nodes[cur].hasChildren {
		bit, err := br.GetBit()
		if err != nil {
			return 0, err
		}
		if bit == 0 {
			cur = nodes[cur].left
		} else {
			cur = nodes[cur].right
		}
	}
	if cur >= uint32(len(nodes)) {
		return 0, &DecryptError{Reason: "huffman walk reached an absent child"}
	}
	return cur, nil
}
