package plan

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatterKey is the front matter field holding the sync state.
const frontmatterKey = "github_sync"

// splitFrontmatter separates YAML front matter from the document body.
// Front matter must be delimited by "---" on its own line at the start of
// the file. Malformed or missing front matter yields an empty map and the
// whole content as body. The returned body is always a suffix of content.
func splitFrontmatter(content string) (map[string]any, string) {
	const delim = "---"

	rest, ok := strings.CutPrefix(content, delim+"\n")
	if !ok {
		return map[string]any{}, content
	}

	end := -1
	offset := 0
	for {
		idx := strings.Index(rest[offset:], "\n")
		lineEnd := len(rest)
		if idx >= 0 {
			lineEnd = offset + idx
		}
		if strings.TrimSpace(rest[offset:lineEnd]) == delim {
			end = offset
			break
		}
		if idx < 0 {
			break
		}
		offset = lineEnd + 1
	}

	if end < 0 {
		return map[string]any{}, content
	}

	fm := map[string]any{}
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil || fm == nil {
		fm = map[string]any{}
	}

	body := rest[end:]
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	} else {
		body = ""
	}
	return fm, body
}

// stateFromFrontmatter extracts the sync state block, if present.
func stateFromFrontmatter(fm map[string]any) (*SyncState, error) {
	raw, ok := fm[frontmatterKey]
	if !ok || raw == nil {
		return nil, nil
	}

	// Round-trip through YAML to decode the generic map into the typed
	// state without hand-walking the structure.
	bits, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("re-encode %s block: %w", frontmatterKey, err)
	}

	var state SyncState
	if err := yaml.Unmarshal(bits, &state); err != nil {
		return nil, fmt.Errorf("decode %s block: %w", frontmatterKey, err)
	}
	if state.Repo == "" && len(state.Mappings) == 0 {
		return nil, nil
	}
	return &state, nil
}

// render reassembles the document with the given state stored in front
// matter. A nil state removes the block.
func (d *Document) render(state *SyncState) (string, error) {
	fm := make(map[string]any, len(d.frontmatter)+1)
	for k, v := range d.frontmatter {
		fm[k] = v
	}
	if state != nil {
		fm[frontmatterKey] = state
	} else {
		delete(fm, frontmatterKey)
	}

	if len(fm) == 0 {
		return d.body, nil
	}

	bits, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("encode front matter: %w", err)
	}

	return "---\n" + string(bits) + "---\n" + d.body, nil
}
