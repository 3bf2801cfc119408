package assets

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type blockStateInfo struct {
	Variants  map[string]json.RawMessage `json:"variants"`
	Multipart []multipartCase            `json:"multipart"`
}

type multipartCase struct {
	Apply json.RawMessage `json:"apply"`
	When  json.RawMessage `json:"when"`
}

type modelRef struct {
	Model string `json:"model"`
}

type modelInfo struct {
	Parent   string            `json:"parent"`
	Textures map[string]string `json:"textures"`
}

// decodeModelRefs accepts both a single model and a weighted list of them.
func decodeModelRefs(raw json.RawMessage) []modelRef {
	var refs []modelRef
	if err := json.Unmarshal(raw, &refs); err == nil {
		return refs
	}
	var ref modelRef
	if err := json.Unmarshal(raw, &ref); err == nil {
		return []modelRef{ref}
	}
	return nil
}

// defaultModel picks the model shown for a block in its default state.
func (b *blockStateInfo) defaultModel() (string, error) {
	if len(b.Variants) > 0 {
		key := ""
		if _, ok := b.Variants[key]; !ok {
			keys := make([]string, 0, len(b.Variants))
			for k := range b.Variants {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			key = keys[0]
		}
		refs := decodeModelRefs(b.Variants[key])
		if len(refs) == 0 || refs[0].Model == "" {
			return "", fmt.Errorf("variant %q has no model", key)
		}
		return refs[0].Model, nil
	}

	// unconditional parts (a fence post, say) describe the block best
	var fallback string
	for _, c := range b.Multipart {
		refs := decodeModelRefs(c.Apply)
		if len(refs) == 0 || refs[0].Model == "" {
			continue
		}
		if len(c.When) == 0 {
			return refs[0].Model, nil
		}
		if fallback == "" {
			fallback = refs[0].Model
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("blockstate has no models")
	}
	return fallback, nil
}

func stripNamespace(name string) string {
	if _, rest, ok := strings.Cut(name, ":"); ok {
		return rest
	}
	return name
}

// pickTexture chooses the texture that best represents a block seen from
// above and resolves #variable references.
func pickTexture(textures map[string]string) (string, error) {
	var name string
	if len(textures) == 1 {
		for _, v := range textures {
			name = v
		}
	} else {
		for _, key := range []string{"top", "all", "texture", "end", "particle"} {
			if v, ok := textures[key]; ok {
				name = v
				break
			}
		}
	}
	if name == "" {
		keys := make([]string, 0, len(textures))
		for k := range textures {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 0 {
			name = textures[keys[0]]
		}
	}

	for i := 0; strings.HasPrefix(name, "#"); i++ {
		if i > len(textures) {
			return "", fmt.Errorf("texture reference loop at %s", name)
		}
		next, ok := textures[name[1:]]
		if !ok {
			return "", fmt.Errorf("unresolved texture reference %s", name)
		}
		name = next
	}
	if name == "" {
		return "", fmt.Errorf("model has no textures")
	}
	return stripNamespace(name), nil
}
