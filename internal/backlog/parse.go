package backlog

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/steveyegge/debtneg/internal/types"
)

const (
	// MaxDescription caps ticket descriptions, in characters.
	MaxDescription = 400

	DefaultStoryPoints = 3
	DefaultPriority    = "Medium"
	DefaultStatus      = "Backlog"
)

// ParseTickets decodes a ticket payload. Accepted shapes:
//
//	{"issues": [...]}     Jira /search response
//	{"features": [...]}   a previous report's feature list
//	[...]                 a bare list of tickets
func ParseTickets(data []byte) ([]types.FeatureTicket, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("backlog payload is not valid JSON")
	}
	root := gjson.ParseBytes(data)

	switch {
	case root.IsArray():
		return collect(root, flatTicket), nil
	case root.Get("issues").IsArray():
		return collect(root.Get("issues"), jiraTicket), nil
	case root.Get("features").IsArray():
		return collect(root.Get("features"), flatTicket), nil
	case root.IsObject():
		return nil, fmt.Errorf("backlog payload has no issues or features list")
	default:
		return nil, fmt.Errorf("backlog payload is a %s, want an object or list", root.Type)
	}
}

func collect(list gjson.Result, decode func(gjson.Result) types.FeatureTicket) []types.FeatureTicket {
	tickets := []types.FeatureTicket{}
	list.ForEach(func(_, item gjson.Result) bool {
		if item.IsObject() {
			tickets = append(tickets, decode(item))
		}
		return true
	})
	return tickets
}

// jiraTicket reads one element of a Jira /search "issues" array.
func jiraTicket(issue gjson.Result) types.FeatureTicket {
	fields := issue.Get("fields")

	points := storyPoints(fields.Get("customfield_10000"))
	if points == 0 {
		if sp := fields.Get("story_points"); sp.Exists() && sp.Type != gjson.Null {
			points = storyPoints(sp)
		} else {
			points = DefaultStoryPoints
		}
	}

	return types.FeatureTicket{
		Key:         strings.TrimSpace(issue.Get("key").String()),
		Title:       fields.Get("summary").String(),
		Priority:    stringOr(fields.Get("priority.name"), DefaultPriority),
		StoryPoints: points,
		Status:      stringOr(fields.Get("status.name"), DefaultStatus),
		Description: truncate(descriptionText(fields.Get("description")), MaxDescription),
	}
}

// flatTicket reads a ticket already in FeatureTicket shape, tolerating Jira field names.
func flatTicket(item gjson.Result) types.FeatureTicket {
	title := item.Get("title").String()
	if title == "" {
		title = item.Get("summary").String()
	}

	points := DefaultStoryPoints
	if sp := item.Get("story_points"); sp.Exists() && sp.Type != gjson.Null {
		points = storyPoints(sp)
	}

	return types.FeatureTicket{
		Key:         strings.TrimSpace(item.Get("key").String()),
		Title:       title,
		Priority:    stringOr(item.Get("priority"), DefaultPriority),
		StoryPoints: points,
		Status:      stringOr(item.Get("status"), DefaultStatus),
		Description: truncate(descriptionText(item.Get("description")), MaxDescription),
	}
}

// descriptionText flattens a plain string or an Atlassian document into text.
func descriptionText(r gjson.Result) string {
	switch {
	case r.Type == gjson.String:
		return r.String()
	case r.IsObject() || r.IsArray():
		var parts []string
		collectText(r, &parts)
		return strings.Join(parts, " ")
	}
	return ""
}

func collectText(r gjson.Result, parts *[]string) {
	if r.IsObject() {
		if text := r.Get("text"); text.Type == gjson.String && text.String() != "" {
			*parts = append(*parts, strings.TrimSpace(text.String()))
		}
		collectText(r.Get("content"), parts)
		return
	}
	if r.IsArray() {
		r.ForEach(func(_, child gjson.Result) bool {
			collectText(child, parts)
			return true
		})
	}
}

// storyPoints rounds a numeric or numeric-string value. Anything else, or a negative, is 0.
func storyPoints(r gjson.Result) int {
	if r.Type != gjson.Number && r.Type != gjson.String {
		return 0
	}
	v := r.Float()
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return int(math.Round(v))
}

func stringOr(r gjson.Result, fallback string) string {
	if s := strings.TrimSpace(r.String()); s != "" && r.Type == gjson.String {
		return s
	}
	return fallback
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}
