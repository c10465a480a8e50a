package plan

import (
	"bytes"
	"strconv"

	"gopkg.in/yaml.v3"

	"trainplan/internal/value"
)

func encodeYAML(b *value.Block) ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{yamlNode(value.FromBlock(b))}}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// yamlNode builds the node tree by hand so mappings come out sorted and
// numbers keep their canonical spelling.
func yamlNode(v value.Value) *yaml.Node {
	scalar := func(tag, text string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: text}
	}
	switch v.Kind() {
	case value.KindBool:
		b, _ := v.BoolVal()
		return scalar("!!bool", strconv.FormatBool(b))
	case value.KindInt:
		n, _ := v.IntVal()
		return scalar("!!int", strconv.FormatInt(n, 10))
	case value.KindFloat:
		f, _ := v.FloatVal()
		return scalar("!!float", value.FormatFloat(f))
	case value.KindString:
		s, _ := v.StringVal()
		return scalar("!!str", s)
	case value.KindList:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, it := range v.Items() {
			n.Content = append(n.Content, yamlNode(it))
		}
		return n
	case value.KindBlock:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		blk := v.Block()
		for _, k := range blk.SortedKeys() {
			child, _ := blk.Get(k)
			n.Content = append(n.Content, scalar("!!str", k), yamlNode(child))
		}
		return n
	}
	return scalar("!!null", "null")
}
