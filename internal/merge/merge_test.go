package merge

import (
	"reflect"
	"testing"

	"github.com/agentdeck/agentdeck/internal/result"
)

func ms(v int64) *int64 { return &v }

func userMsg(text string, ts *int64) result.HistoryMessage {
	return result.HistoryMessage{Role: result.RoleUser, ContentKind: result.ContentText, Content: text, TimestampMS: ts}
}

func assistantMsg(id, text string, ts *int64) result.HistoryMessage {
	return result.HistoryMessage{ID: id, Role: result.RoleAssistant, ContentKind: result.ContentText, Content: text, TimestampMS: ts}
}

func TestMerge_Idempotent(t *testing.T) {
	transcript := []result.HistoryMessage{
		userMsg("fix the tests", ms(100)),
		assistantMsg("msg_1", "working on it", ms(200)),
		assistantMsg("msg_2", "done", ms(300)),
	}
	got := Merge(transcript, transcript)
	if !reflect.DeepEqual(got, transcript) {
		t.Errorf("merge(T, T) changed the transcript:\n got %+v\nwant %+v", got, transcript)
	}
}

func TestMerge_IdempotentAcrossSharedIDKinds(t *testing.T) {
	// crush and opencode emit the tool block and the text block of one
	// turn under the same backend message id; they are distinct logical
	// messages and must keep distinct slots.
	transcript := []result.HistoryMessage{
		{ID: "m1", Role: result.RoleUser, ContentKind: result.ContentText, Content: "run the tests", TimestampMS: ms(100)},
		{ID: "m2", Role: result.RoleAssistant, ContentKind: result.ContentTool, Content: `bash({"cmd":"ls"})`, TimestampMS: ms(200)},
		{ID: "m2", Role: result.RoleAssistant, ContentKind: result.ContentText, Content: "All tests pass now, nothing else to do.", TimestampMS: ms(300)},
	}
	got := Merge(transcript, transcript)
	if !reflect.DeepEqual(got, transcript) {
		t.Fatalf("merge(T, T) changed the transcript:\n got %+v\nwant %+v", got, transcript)
	}
	if got[1].ContentKind != result.ContentTool {
		t.Errorf("tool message lost to the sibling text block: %+v", got[1])
	}
}

func TestMerge_LongerTextWinsPerKey(t *testing.T) {
	existing := []result.HistoryMessage{
		userMsg("hello", ms(1)),
		assistantMsg("msg_1", "Let me", ms(2)),
	}
	incoming := []result.HistoryMessage{
		assistantMsg("msg_1", "Let me look at the parser first", ms(3)),
	}
	got := Merge(existing, incoming)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[1].Content != "Let me look at the parser first" {
		t.Errorf("fuller revision did not win: %q", got[1].Content)
	}
	if got[0].Content != "hello" {
		t.Errorf("unrelated message disturbed: %q", got[0].Content)
	}
}

func TestMerge_ShorterIncomingDoesNotRegress(t *testing.T) {
	existing := []result.HistoryMessage{
		assistantMsg("msg_1", "the full final answer", ms(5)),
	}
	incoming := []result.HistoryMessage{
		assistantMsg("msg_1", "the full", ms(9)),
	}
	got := Merge(existing, incoming)
	if got[0].Content != "the full final answer" {
		t.Errorf("shorter fragment regressed the message: %q", got[0].Content)
	}
}

func TestMerge_QuoteNormalizationEqualizesKeys(t *testing.T) {
	existing := []result.HistoryMessage{
		userMsg("Okey, commit and push", nil),
	}
	incoming := []result.HistoryMessage{
		userMsg(`"Okey, commit and push"`, ms(1714559400000)),
	}
	got := Merge(existing, incoming)
	if len(got) != 1 {
		t.Fatalf("expected 1 message after quote-normalized dedup, got %d", len(got))
	}
	if got[0].TimestampMS == nil || *got[0].TimestampMS != 1714559400000 {
		t.Errorf("incoming timestamp not retained: %+v", got[0].TimestampMS)
	}
}

func TestMerge_KeylessAppendedUnconditionally(t *testing.T) {
	keyless := result.HistoryMessage{Role: result.RoleAssistant, ContentKind: result.ContentText}
	existing := []result.HistoryMessage{keyless}
	got := Merge(existing, []result.HistoryMessage{keyless})
	if len(got) != 2 {
		t.Errorf("key-less messages must append, not dedup: got %d messages", len(got))
	}
}

func TestMerge_SameTextDifferentRolesStayApart(t *testing.T) {
	existing := []result.HistoryMessage{userMsg("ok", ms(1))}
	incoming := []result.HistoryMessage{assistantMsg("", "ok", ms(2))}
	got := Merge(existing, incoming)
	if len(got) != 2 {
		t.Errorf("same key with different roles must not collapse: got %d", len(got))
	}
}

func TestMerge_ReplacementPreservesOrder(t *testing.T) {
	existing := []result.HistoryMessage{
		userMsg("first", ms(1)),
		assistantMsg("msg_1", "draft", ms(2)),
		userMsg("second", ms(3)),
	}
	incoming := []result.HistoryMessage{
		assistantMsg("msg_1", "draft, now finished", ms(4)),
		userMsg("third", ms(5)),
	}
	got := Merge(existing, incoming)
	wantOrder := []string{"first", "draft, now finished", "second", "third"}
	if len(got) != len(wantOrder) {
		t.Fatalf("expected %d messages, got %d", len(wantOrder), len(got))
	}
	for i, want := range wantOrder {
		if got[i].Content != want {
			t.Errorf("position %d: got %q, want %q", i, got[i].Content, want)
		}
	}
}

func TestMerge_EqualTextAdoptsBackendID(t *testing.T) {
	existing := []result.HistoryMessage{
		{Role: result.RoleUser, ContentKind: result.ContentText, Content: "commit it"},
	}
	incoming := []result.HistoryMessage{
		{ID: "msg_9", Role: result.RoleUser, ContentKind: result.ContentText, Content: "commit it", TimestampMS: ms(7)},
	}
	got := Merge(existing, incoming)
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	if got[0].ID != "msg_9" {
		t.Errorf("backend id not adopted: %q", got[0].ID)
	}
}

func TestFromParts(t *testing.T) {
	parts := []result.ResponsePart{
		{Text: "thinking about it", Kind: result.PartThinking, TimestampMS: ms(1)},
		{Text: "ls -la", Kind: result.PartTool, ID: "call_1"},
		{Text: "here you go", Kind: result.PartFinal},
	}
	msgs := FromParts(parts)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Role != result.RoleAssistant || msgs[0].ContentKind != result.ContentText {
		t.Errorf("thinking part mapped wrong: %+v", msgs[0])
	}
	if msgs[1].ContentKind != result.ContentTool || msgs[1].PartID != "call_1" {
		t.Errorf("tool part mapped wrong: %+v", msgs[1])
	}
	if msgs[2].PartID == "" {
		t.Error("id-less part did not receive a local id")
	}
}
