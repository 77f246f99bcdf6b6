package loaders

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/lodestone-engine/lodestone/engine/core"
	"github.com/lodestone-engine/lodestone/engine/resources"
)

// ModelLoader decodes Wavefront OBJ payloads. Faces with more than three
// vertices are triangulated as a fan; materials and groups are ignored.
type ModelLoader struct{}

func (ml *ModelLoader) Kind() resources.Kind {
	return resources.KindModel
}

func (ml *ModelLoader) Decode(id string, data []byte) (*resources.Resource, error) {
	model := &resources.ModelData{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		var err error
		switch fields[0] {
		case "v":
			var v [3]float32
			if v, err = parseVec3(fields[1:]); err == nil {
				model.Positions = append(model.Positions, v)
			}
		case "vn":
			var v [3]float32
			if v, err = parseVec3(fields[1:]); err == nil {
				model.Normals = append(model.Normals, v)
			}
		case "vt":
			var v [2]float32
			if v, err = parseVec2(fields[1:]); err == nil {
				model.TexCoords = append(model.TexCoords, v)
			}
		case "f":
			err = appendFace(model, fields[1:])
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w: line %d: %v", id, core.ErrDecodeFailed, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", id, core.ErrDecodeFailed, err)
	}
	if len(model.Positions) == 0 {
		return nil, fmt.Errorf("%s: %w: no vertex data", id, core.ErrDecodeFailed)
	}

	// 12 bytes per position/normal, 8 per texcoord, 36 per triangle of refs.
	size := uint64(len(model.Positions)*12 + len(model.Normals)*12 +
		len(model.TexCoords)*8 + len(model.Triangles)*36)

	return &resources.Resource{
		ID:      id,
		Kind:    resources.KindModel,
		Size:    size,
		Payload: model,
	}, nil
}

func parseVec3(fields []string) ([3]float32, error) {
	var out [3]float32
	if len(fields) < 3 {
		return out, fmt.Errorf("expected 3 components, got %d", len(fields))
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return out, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

func parseVec2(fields []string) ([2]float32, error) {
	var out [2]float32
	if len(fields) < 2 {
		return out, fmt.Errorf("expected 2 components, got %d", len(fields))
	}
	for i := 0; i < 2; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return out, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

func appendFace(model *resources.ModelData, fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("face with %d vertices", len(fields))
	}
	refs := make([]resources.VertexRef, len(fields))
	for i, f := range fields {
		ref, err := parseVertexRef(f, model)
		if err != nil {
			return err
		}
		refs[i] = ref
	}
	// Fan triangulation around the first vertex.
	for i := 1; i < len(refs)-1; i++ {
		model.Triangles = append(model.Triangles, [3]resources.VertexRef{refs[0], refs[i], refs[i+1]})
	}
	return nil
}

// parseVertexRef handles the v, v/vt, v//vn and v/vt/vn forms. OBJ indices
// are 1-based and may be negative (relative to the end of the array so far).
func parseVertexRef(field string, model *resources.ModelData) (resources.VertexRef, error) {
	ref := resources.VertexRef{Position: -1, TexCoord: -1, Normal: -1}
	parts := strings.Split(field, "/")

	resolve := func(raw string, count int) (int, error) {
		if raw == "" {
			return -1, nil
		}
		idx, err := strconv.Atoi(raw)
		if err != nil {
			return -1, err
		}
		if idx < 0 {
			idx = count + idx
		} else {
			idx--
		}
		if idx < 0 || idx >= count {
			return -1, fmt.Errorf("index %s out of range", raw)
		}
		return idx, nil
	}

	var err error
	if ref.Position, err = resolve(parts[0], len(model.Positions)); err != nil {
		return ref, err
	}
	if len(parts) > 1 {
		if ref.TexCoord, err = resolve(parts[1], len(model.TexCoords)); err != nil {
			return ref, err
		}
	}
	if len(parts) > 2 {
		if ref.Normal, err = resolve(parts[2], len(model.Normals)); err != nil {
			return ref, err
		}
	}
	return ref, nil
}
