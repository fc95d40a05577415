package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"sheetcalc/internal/calc"
)

// Snapshot is the YAML document format:
//
//	cells:
//	  A1: 1
//	  A2: "=SUM(A1:A1)"
//
// JSON documents of the same shape parse too, since JSON is valid YAML.
type Snapshot struct {
	Cells map[string]any `yaml:"cells"`
}

// ReadSnapshot decodes a YAML/JSON snapshot.
func ReadSnapshot(r io.Reader) (calc.Cells, error) {
	var doc Snapshot
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return calc.Cells{}, nil
		}
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	cells, err := calc.NewCells(doc.Cells)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return cells, nil
}

// LoadSnapshot reads a YAML/JSON snapshot file.
func LoadSnapshot(filename string) (calc.Cells, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ReadSnapshot(bytes.NewReader(data))
}

// WriteSnapshot encodes cells as YAML, ordered by row then column.
func WriteSnapshot(w io.Writer, cells calc.Cells) error {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, ref := range cells.Refs() {
		var val yaml.Node
		if err := val.Encode(cells[ref].Native()); err != nil {
			return fmt.Errorf("encoding cell %s: %w", ref, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: ref},
			&val,
		)
	}
	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: "cells"},
		node,
	}}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return enc.Close()
}

// SaveSnapshot writes cells to a YAML file.
func SaveSnapshot(cells calc.Cells, filename string) error {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, cells); err != nil {
		return err
	}
	return os.WriteFile(filename, buf.Bytes(), 0644)
}
