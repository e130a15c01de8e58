package maps

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"tilemap/pkg/geom"
)

// Metadata is the descriptive part of map.yaml.
type Metadata struct {
	MapFormat   int
	RequiresMod string
	Title       string
	Author      string
	TilesetID   string
	Visibility  Visibility
	Categories  []string
	LockPreview bool

	// Player and actor definitions are kept as raw YAML mappings.
	Players *yaml.Node
	Actors  *yaml.Node

	// Optional rule overrides, kept as raw YAML.
	Rules          *yaml.Node
	Sequences      *yaml.Node
	ModelSequences *yaml.Node
	Weapons        *yaml.Node
	Voices         *yaml.Node
	Music          *yaml.Node
	Notifications  *yaml.Node
}

// yamlField maps one top-level map.yaml key onto the map.
// encode reports false when an optional field should be omitted.
type yamlField struct {
	key      string
	required bool
	encode   func(m *Map) (*yaml.Node, bool)
	decode   func(m *Map, n *yaml.Node) error
}

// yamlFields defines the fields of map.yaml in the order they are written.
var yamlFields = []yamlField{
	{"MapFormat", true,
		func(m *Map) (*yaml.Node, bool) { return intNode(m.MapFormat), true },
		func(m *Map, n *yaml.Node) error { return n.Decode(&m.MapFormat) }},
	{"RequiresMod", true,
		func(m *Map) (*yaml.Node, bool) { return stringNode(m.RequiresMod), true },
		func(m *Map, n *yaml.Node) error { return n.Decode(&m.RequiresMod) }},
	{"Title", true,
		func(m *Map) (*yaml.Node, bool) { return stringNode(m.Title), true },
		func(m *Map, n *yaml.Node) error { return n.Decode(&m.Title) }},
	{"Author", true,
		func(m *Map) (*yaml.Node, bool) { return stringNode(m.Author), true },
		func(m *Map, n *yaml.Node) error { return n.Decode(&m.Author) }},
	{"Tileset", true,
		func(m *Map) (*yaml.Node, bool) { return stringNode(m.TilesetID), true },
		func(m *Map, n *yaml.Node) error { return n.Decode(&m.TilesetID) }},
	{"MapSize", true,
		func(m *Map) (*yaml.Node, bool) {
			return stringNode(fmt.Sprintf("%d,%d", m.MapSize.Width, m.MapSize.Height)), true
		},
		func(m *Map, n *yaml.Node) error {
			v, err := parseInts(n, 2)
			if err != nil {
				return err
			}
			m.MapSize = geom.Size{Width: v[0], Height: v[1]}
			return nil
		}},
	{"Bounds", true,
		func(m *Map) (*yaml.Node, bool) { return stringNode(m.Bounds.String()), true },
		func(m *Map, n *yaml.Node) error {
			v, err := parseInts(n, 4)
			if err != nil {
				return err
			}
			m.Bounds = geom.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
			return nil
		}},
	{"Visibility", true,
		func(m *Map) (*yaml.Node, bool) { return stringNode(m.Visibility.String()), true },
		func(m *Map, n *yaml.Node) error {
			v, err := ParseVisibility(n.Value)
			m.Visibility = v
			return err
		}},
	{"Categories", true,
		func(m *Map) (*yaml.Node, bool) { return stringNode(strings.Join(m.Categories, ", ")), true },
		func(m *Map, n *yaml.Node) error {
			m.Categories = parseList(n)
			return nil
		}},
	{"LockPreview", false,
		func(m *Map) (*yaml.Node, bool) { return boolNode(m.LockPreview), m.LockPreview },
		func(m *Map, n *yaml.Node) error { return n.Decode(&m.LockPreview) }},
	nodeField("Players", true, func(md *Metadata) **yaml.Node { return &md.Players }),
	nodeField("Actors", true, func(md *Metadata) **yaml.Node { return &md.Actors }),
	nodeField("Rules", false, func(md *Metadata) **yaml.Node { return &md.Rules }),
	nodeField("Sequences", false, func(md *Metadata) **yaml.Node { return &md.Sequences }),
	nodeField("ModelSequences", false, func(md *Metadata) **yaml.Node { return &md.ModelSequences }),
	nodeField("Weapons", false, func(md *Metadata) **yaml.Node { return &md.Weapons }),
	nodeField("Voices", false, func(md *Metadata) **yaml.Node { return &md.Voices }),
	nodeField("Music", false, func(md *Metadata) **yaml.Node { return &md.Music }),
	nodeField("Notifications", false, func(md *Metadata) **yaml.Node { return &md.Notifications }),
}

// nodeField stores a block as raw YAML. Required blocks are written even when empty.
func nodeField(key string, required bool, field func(*Metadata) **yaml.Node) yamlField {
	return yamlField{
		key:      key,
		required: required,
		encode: func(m *Map) (*yaml.Node, bool) {
			n := *field(&m.Metadata)
			if n == nil || (n.Kind == yaml.MappingNode && len(n.Content) == 0) {
				return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, required
			}
			return n, true
		},
		decode: func(m *Map, n *yaml.Node) error {
			*field(&m.Metadata) = n
			return nil
		},
	}
}

// decodeMetadata parses map.yaml into m.
func decodeMetadata(m *Map, data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("%w: map.yaml is not a mapping", ErrInvalidMetadata)
	}

	root := doc.Content[0]
	values := make(map[string]*yaml.Node, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		values[root.Content[i].Value] = root.Content[i+1]
	}

	for _, f := range yamlFields {
		n, ok := values[f.key]
		if !ok {
			if f.required {
				return fmt.Errorf("%w: required field %s not found in map.yaml", ErrInvalidMetadata, f.key)
			}
			continue
		}
		if err := f.decode(m, n); err != nil {
			return fmt.Errorf("%w: field %s: %v", ErrInvalidMetadata, f.key, err)
		}
	}
	return nil
}

// encodeMetadata writes the map.yaml fields in table order.
func encodeMetadata(m *Map) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, f := range yamlFields {
		n, ok := f.encode(m)
		if !ok && !f.required {
			continue
		}
		root.Content = append(root.Content, stringNode(f.key), n)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return nil, fmt.Errorf("failed to encode map.yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode map.yaml: %w", err)
	}
	return buf.Bytes(), nil
}

var mapFormatPattern = regexp.MustCompile(`^MapFormat:\s*(\d*)\s*$`)

// ReadMapFormat finds the MapFormat line of a map.yaml without parsing the document.
func ReadMapFormat(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if match := mapFormatPattern.FindStringSubmatch(scanner.Text()); match != nil {
			format, err := strconv.Atoi(match[1])
			if err != nil {
				return 0, fmt.Errorf("%w: invalid MapFormat %q", ErrInvalidMetadata, match[1])
			}
			return format, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read map.yaml: %w", err)
	}
	return 0, fmt.Errorf("%w: MapFormat is not defined", ErrInvalidMetadata)
}

func stringNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func intNode(v int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(v)}
}

func boolNode(v bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v)}
}

// parseInts reads a comma separated list of exactly n integers.
func parseInts(n *yaml.Node, count int) ([]int, error) {
	parts := strings.Split(n.Value, ",")
	if len(parts) != count {
		return nil, fmt.Errorf("expected %d comma separated values, got %q", count, n.Value)
	}
	values := make([]int, count)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		values[i] = v
	}
	return values, nil
}

// parseList accepts either a comma separated scalar or a YAML sequence.
func parseList(n *yaml.Node) []string {
	var items []string
	if n.Kind == yaml.SequenceNode {
		for _, c := range n.Content {
			items = append(items, c.Value)
		}
		return items
	}
	for _, p := range strings.Split(n.Value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}
