package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// Document is a retrieval candidate. Score carries the value assigned by the
// stage named in Stage; earlier scores are overwritten as the document moves
// down the pipeline.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float64           `json:"score"`
	Stage    string            `json:"stage,omitempty"` // stage that last scored the document
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := d
	if d.Metadata != nil {
		out.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// CandidateSet is an ordered list of candidates. Order is rank order;
// IDs are unique within a set.
type CandidateSet []Document

// Clone returns a deep copy of the set. Used at cache boundaries so cached
// entries stay immutable.
func (cs CandidateSet) Clone() CandidateSet {
	if cs == nil {
		return nil
	}
	out := make(CandidateSet, len(cs))
	for i, d := range cs {
		out[i] = d.Clone()
	}
	return out
}

// Truncate returns the first k documents, preserving input order.
// k <= 0 or k >= len returns the set unchanged.
func (cs CandidateSet) Truncate(k int) CandidateSet {
	if k <= 0 || k >= len(cs) {
		return cs
	}
	return cs[:k]
}

// Dedupe drops later occurrences of duplicate IDs, preserving rank order.
func (cs CandidateSet) Dedupe() CandidateSet {
	if len(cs) < 2 {
		return cs
	}
	seen := make(map[string]bool, len(cs))
	out := cs[:0:0]
	for _, d := range cs {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out
}

// Fingerprint derives a stable identifier for the set: a sha256 over
// id + content hash pairs in rank order. Two sets with the same documents in
// the same order share a fingerprint regardless of scores.
func (cs CandidateSet) Fingerprint() string {
	h := sha256.New()
	for _, d := range cs {
		ch := sha256.Sum256([]byte(d.Content))
		h.Write([]byte(d.ID))
		h.Write([]byte{0})
		h.Write(ch[:8])
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
