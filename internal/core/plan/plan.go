// Package plan defines the checklist domain model and the plan document store.
//
// A plan is a markdown document with checkbox items grouped under phase
// headers. The document's YAML front matter carries the durable sync state
// linking items to remote issues.
package plan

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"
)

// Status represents the lifecycle state of a plan item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Completed reports whether the item counts as done for reconciliation.
// in_progress counts as not completed.
func (s Status) Completed() bool { return s == StatusCompleted }

// Item represents a single checkbox entry in a plan document.
type Item struct {
	// Key is the stable identity used to link the item to a remote issue.
	// It equals Content except when the same text appears more than once
	// in a plan, in which case later occurrences get an ordinal suffix.
	Key string `json:"key"`
	// Content is the checkbox text as written.
	Content string `json:"content"`
	Status  Status `json:"status"`
	// Phase is the nearest preceding "### ..." header, informational only.
	Phase string `json:"phase,omitempty"`
	// Line is the 1-indexed line number in the document.
	Line int `json:"line"`
}

// Document is a parsed plan file.
type Document struct {
	// Project is taken from the "project" front matter field.
	Project string
	Items   []Item
	// State is the persisted sync state, nil if the plan was never synced.
	State *SyncState

	frontmatter map[string]any
	body        string
}

var (
	phasePattern    = regexp.MustCompile(`^###\s+(.+)$`)
	checkboxPattern = regexp.MustCompile(`^(\s*-\s*\[)([ xX])(\]\s*)(.+)$`)
)

// Parse parses plan document content into items and sync state.
//
// Items with text identical to an earlier item get " #2", " #3", ...
// appended to their Key so every key is unique within the plan.
func Parse(content string) (*Document, error) {
	fm, body := splitFrontmatter(content)

	doc := &Document{
		frontmatter: fm,
		body:        body,
	}

	if p, ok := fm["project"].(string); ok {
		doc.Project = p
	}

	state, err := stateFromFrontmatter(fm)
	if err != nil {
		return nil, fmt.Errorf("parse sync state: %w", err)
	}
	doc.State = state

	bodyStart := strings.Count(content[:len(content)-len(body)], "\n")

	seen := map[string]int{}
	currentPhase := ""
	line := bodyStart

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line++
		text := scanner.Text()

		if m := phasePattern.FindStringSubmatch(text); m != nil {
			currentPhase = strings.TrimSpace(m[1])
			continue
		}

		m := checkboxPattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		content := strings.TrimSpace(m[4])
		if content == "" {
			continue
		}

		status := StatusPending
		if strings.EqualFold(m[2], "x") {
			status = StatusCompleted
		}

		seen[content]++
		key := content
		if n := seen[content]; n > 1 {
			key = fmt.Sprintf("%s #%d", content, n)
		}

		doc.Items = append(doc.Items, Item{
			Key:     key,
			Content: content,
			Status:  status,
			Phase:   currentPhase,
			Line:    line,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan plan body: %w", err)
	}

	return doc, nil
}

// Item returns the item with the given key, if present.
func (d *Document) Item(key string) (Item, bool) {
	for _, it := range d.Items {
		if it.Key == key {
			return it, true
		}
	}
	return Item{}, false
}

// StatusUpdate is a single item status change to write back into a document.
type StatusUpdate struct {
	Key    string `json:"key"`
	Status Status `json:"status"`
}

// applyUpdates rewrites checkbox characters in body for each update and
// returns the new body. Unknown keys are ignored; the caller reports them.
func applyUpdates(items []Item, body string, updates []StatusUpdate) string {
	byKey := make(map[string]Item, len(items))
	for _, it := range items {
		byKey[it.Key] = it
	}

	lines := strings.Split(body, "\n")
	for _, up := range updates {
		it, ok := byKey[up.Key]
		if !ok {
			continue
		}

		// Walk lines matching the item content; duplicates resolve by
		// occurrence order, mirroring key assignment in Parse.
		occurrence := keyOccurrence(it)
		n := 0
		for i, line := range lines {
			m := checkboxPattern.FindStringSubmatch(line)
			if m == nil || strings.TrimSpace(m[4]) != it.Content {
				continue
			}
			n++
			if n != occurrence {
				continue
			}
			check := " "
			if up.Status.Completed() {
				check = "x"
			}
			lines[i] = m[1] + check + m[3] + m[4]
			break
		}
	}
	return strings.Join(lines, "\n")
}

// keyOccurrence returns which occurrence of the item's content the key
// refers to (1-based).
func keyOccurrence(it Item) int {
	if it.Key == it.Content {
		return 1
	}
	var n int
	if _, err := fmt.Sscanf(strings.TrimPrefix(it.Key, it.Content), " #%d", &n); err != nil || n < 1 {
		return 1
	}
	return n
}
