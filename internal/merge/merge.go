// Package merge reconciles an existing transcript with an incoming batch of
// messages into one canonical ordered transcript. The incoming batch may be a
// fresh export or live response fragments mapped through FromParts; either
// way the same rules apply, so a streamed fragment and its persisted final
// form resolve to a single logical message.
//
// Merge is a pure function with no I/O. Callers run it after every live
// update and after every history refetch.
package merge

import (
	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/result"
	"github.com/agentdeck/agentdeck/internal/textnorm"
)

// key computes the dedup key for a message, or "" when the message carries
// nothing stable enough to dedup on. Assistant messages prefer the backend
// assigned id because their text grows while streaming; user messages prefer
// normalized text because it is fully known the moment it is sent.
func key(m result.HistoryMessage) string {
	switch m.Role {
	case result.RoleAssistant:
		if m.ID != "" {
			return "id:" + m.ID
		}
		if norm := textnorm.Normalize(m.Content); norm != "" {
			return "text:" + norm
		}
		if m.PartID != "" {
			return "part:" + m.PartID
		}
	default:
		if norm := textnorm.Normalize(m.Content); norm != "" {
			return "text:" + norm
		}
		if m.ID != "" {
			return "id:" + m.ID
		}
		if m.PartID != "" {
			return "part:" + m.PartID
		}
	}
	return ""
}

// slot scopes the dedup key by role and content kind. Backends emit the tool
// block and the text block of one turn under the same backend message id, so
// the id alone does not identify a logical message.
func slot(m result.HistoryMessage) string {
	k := key(m)
	if k == "" {
		return ""
	}
	return k + "|" + string(m.Role) + "|" + string(m.ContentKind)
}

// Merge folds incoming into existing and returns the updated transcript.
// Same key + same role + same content kind means the same logical message:
// the longer normalized text wins (a streamed fragment is superseded by its
// fuller successor), ties are broken by the later parseable timestamp.
// Key-less messages are appended unconditionally. Order is first-occurrence
// append order; replacements happen in place so conversation order survives
// revisions.
func Merge(existing, incoming []result.HistoryMessage) []result.HistoryMessage {
	out := make([]result.HistoryMessage, len(existing))
	copy(out, existing)

	index := make(map[string]int, len(out))
	for i, m := range out {
		s := slot(m)
		if s == "" {
			continue
		}
		if _, seen := index[s]; !seen {
			index[s] = i
		}
	}

	for _, in := range incoming {
		s := slot(in)
		if s == "" {
			out = append(out, in)
			continue
		}
		i, seen := index[s]
		if !seen {
			index[s] = len(out)
			out = append(out, in)
			continue
		}
		out[i] = reconcile(out[i], in)
	}

	return out
}

// reconcile picks the fuller of two renditions of the same logical message.
func reconcile(have, in result.HistoryMessage) result.HistoryMessage {
	haveLen := len(textnorm.Normalize(have.Content))
	inLen := len(textnorm.Normalize(in.Content))

	switch {
	case inLen > haveLen:
		return in
	case inLen < haveLen:
		return have
	}

	// Equal text: keep the in-place message but adopt the incoming
	// timestamp when it is the parseable/later one, and fill in a backend
	// id the earlier rendition lacked.
	if in.TimestampMS != nil && (have.TimestampMS == nil || *in.TimestampMS >= *have.TimestampMS) {
		have.TimestampMS = in.TimestampMS
	}
	if have.ID == "" {
		have.ID = in.ID
	}
	return have
}

// FromParts maps live response fragments to the common message shape Merge
// consumes. Fragments without a backend part id get a locally generated one
// so that an id-less, text-less fragment still has a last-resort dedup key.
func FromParts(parts []result.ResponsePart) []result.HistoryMessage {
	msgs := make([]result.HistoryMessage, 0, len(parts))
	for _, p := range parts {
		kind := result.ContentText
		if p.Kind == result.PartTool {
			kind = result.ContentTool
		}
		partID := p.ID
		if partID == "" {
			partID = "local-" + uuid.NewString()
		}
		msgs = append(msgs, result.HistoryMessage{
			Role:        result.RoleAssistant,
			ContentKind: kind,
			Content:     p.Text,
			TimestampMS: p.TimestampMS,
			PartID:      partID,
		})
	}
	return msgs
}
