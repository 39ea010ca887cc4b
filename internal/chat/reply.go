package chat

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/ashureev/auditsseus-chat/internal/domain"
	"github.com/google/uuid"
)

// ReplyKind tags the shape the backend answered with.
//
// The backend contract is loose, so bodies are interpreted in a fixed order:
// an array of items, then an object with a "response" field (raw non-JSON
// text is treated as {"response": text}), then a malformed notice.
type ReplyKind int

const (
	// ReplyBatch is an array; each element becomes one assistant message.
	ReplyBatch ReplyKind = iota
	// ReplySingle is an object carrying a non-empty "response".
	ReplySingle
	// ReplyMalformed is anything else.
	ReplyMalformed
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyBatch:
		return "batch"
	case ReplySingle:
		return "single"
	default:
		return "malformed"
	}
}

// ReplyItem is one assistant message worth of reply.
type ReplyItem struct {
	Text   string
	Action *domain.Action
}

// Reply is a normalized backend response.
type Reply struct {
	Kind  ReplyKind
	Items []ReplyItem
}

// ParseReply normalizes a relay response body.
func ParseReply(body string) Reply {
	var doc interface{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		doc = map[string]interface{}{"response": body}
	}

	switch v := doc.(type) {
	case []interface{}:
		items := make([]ReplyItem, 0, len(v))
		for _, el := range v {
			obj, _ := el.(map[string]interface{})
			text := truthyText(obj["text"])
			if text == "" {
				text = NoResponseText
			}
			items = append(items, ReplyItem{Text: text, Action: parseAction(obj["action"])})
		}
		return Reply{Kind: ReplyBatch, Items: items}
	case map[string]interface{}:
		if text := truthyText(v["response"]); text != "" {
			return Reply{Kind: ReplySingle, Items: []ReplyItem{{Text: text}}}
		}
	}

	return Reply{Kind: ReplyMalformed, Items: []ReplyItem{{Text: MalformedText}}}
}

// Messages converts the reply into assistant messages stamped with now.
func (r Reply) Messages(now time.Time) []domain.Message {
	out := make([]domain.Message, 0, len(r.Items))
	for _, item := range r.Items {
		out = append(out, domain.Message{
			ID:        uuid.NewString(),
			Text:      item.Text,
			CreatedAt: now,
			Action:    item.Action,
		})
	}
	return out
}

// truthyText returns a display string for truthy JSON values and "" otherwise.
func truthyText(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return ""
	case nil:
		return ""
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func parseAction(v interface{}) *domain.Action {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	a := &domain.Action{}
	a.Type, _ = obj["type"].(string)
	a.URL, _ = obj["url"].(string)
	a.Title, _ = obj["title"].(string)
	return a
}
