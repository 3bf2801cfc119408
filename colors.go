package livemap

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"image/color"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/gamut"
)

// FaceColors holds one color per raycast sequence step. Components are
// straight, not premultiplied, alpha.
type FaceColors [4]color.RGBA

// ColorTable maps material ids to face colors. Worlds that identify blocks
// by name resolve them through MaterialID; names missing from the table get
// a generated color so the map never has holes.
type ColorTable struct {
	sync.RWMutex

	colors map[int]FaceColors
	names  map[string]int

	nextGenerated int
}

func NewColorTable() *ColorTable {
	return &ColorTable{
		colors:        make(map[int]FaceColors),
		names:         make(map[string]int),
		nextGenerated: -1,
	}
}

func LoadColorTable(path string) (*ColorTable, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open colorset %s: %w", path, err)
	}
	defer fd.Close()

	table, err := ParseColorTable(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to load colorset %s: %w", path, err)
	}
	return table, nil
}

// ParseColorTable reads the tab separated colorset format: an id followed by
// four RGBA quads and an optional block name.
func ParseColorTable(r io.Reader) (*ColorTable, error) {
	table := NewColorTable()

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		split := strings.Split(line, "\t")
		if len(split) < 17 {
			continue
		}

		values := make([]int, 17)
		for i := 0; i < 17; i++ {
			v, err := strconv.Atoi(strings.TrimSpace(split[i]))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if i > 0 && (v < 0 || v > 255) {
				return nil, fmt.Errorf("line %d: color component %d out of range", lineNo, v)
			}
			values[i] = v
		}

		id := values[0]
		quad := func(offset int) color.RGBA {
			return color.RGBA{
				R: uint8(values[offset]),
				G: uint8(values[offset+1]),
				B: uint8(values[offset+2]),
				A: uint8(values[offset+3]),
			}
		}

		// file order is 0, 3, 1, 2 in raycast sequence numbers
		var faces FaceColors
		faces[0] = quad(1)
		faces[3] = quad(5)
		faces[1] = quad(9)
		faces[2] = quad(13)
		table.colors[id] = faces

		if len(split) > 17 {
			if name := strings.TrimSpace(split[17]); name != "" {
				table.names[name] = id
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return table, nil
}

// Len returns the number of material ids with colors.
func (t *ColorTable) Len() int {
	t.RLock()
	defer t.RUnlock()
	return len(t.colors)
}

func (t *ColorTable) Colors(id int) (FaceColors, bool) {
	t.RLock()
	defer t.RUnlock()
	c, ok := t.colors[id]
	return c, ok
}

// MaterialID resolves a block name to a material id, generating colors for
// names the colorset does not list.
func (t *ColorTable) MaterialID(name string) int {
	t.RLock()
	id, ok := t.names[name]
	t.RUnlock()
	if ok {
		return id
	}

	t.Lock()
	defer t.Unlock()
	if id, ok := t.names[name]; ok {
		return id
	}

	id = t.nextGenerated
	t.nextGenerated--
	t.names[name] = id
	t.colors[id] = generateFaceColors(name)
	return id
}

func generateFaceColors(name string) FaceColors {
	h := fnv.New32a()
	h.Write([]byte(name))
	hue := float64(h.Sum32() % 360)

	return ShadedFaces(colorful.Hsv(hue, 0.35, 0.75), 255)
}

// ShadedFaces derives the four face colors of a block from its top color:
// top faces keep the color, side faces are darkened by how far they face
// away from the light.
func ShadedFaces(top color.Color, alpha uint8) FaceColors {
	base, ok := colorful.MakeColor(opaque(top))
	if !ok || alpha == 0 {
		return FaceColors{}
	}

	var faces FaceColors
	faces[0] = toRGBA(base, alpha)
	faces[1] = toRGBA(gamut.Darker(base, 0.15), alpha)
	faces[2] = toRGBA(base, alpha)
	faces[3] = toRGBA(gamut.Darker(base, 0.3), alpha)
	return faces
}

func opaque(c color.Color) color.Color {
	r, g, b, a := c.RGBA()
	if a == 0 {
		return color.RGBA{}
	}
	// un-premultiply
	return color.RGBA64{
		R: uint16(r * 0xffff / a),
		G: uint16(g * 0xffff / a),
		B: uint16(b * 0xffff / a),
		A: 0xffff,
	}
}

func toRGBA(c color.Color, alpha uint8) color.RGBA {
	cf, _ := colorful.MakeColor(c)
	r, g, b := cf.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: alpha}
}

// ColorEntry is one line of a colorset file.
type ColorEntry struct {
	ID    int
	Name  string
	Faces FaceColors
}

// WriteColorTable writes entries in the format ParseColorTable reads.
func WriteColorTable(w io.Writer, entries []ColorEntry) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# id\ttop\tside z\tside x\ttop (second step)\tname")
	for _, e := range entries {
		fields := make([]string, 0, 18)
		fields = append(fields, strconv.Itoa(e.ID))
		for _, seq := range [4]int{0, 3, 1, 2} {
			c := e.Faces[seq]
			fields = append(fields,
				strconv.Itoa(int(c.R)),
				strconv.Itoa(int(c.G)),
				strconv.Itoa(int(c.B)),
				strconv.Itoa(int(c.A)),
			)
		}
		if e.Name != "" {
			fields = append(fields, e.Name)
		}
		if _, err := fmt.Fprintln(bw, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}
	return bw.Flush()
}
